package transcoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"framecut/internal/geometry"
)

// ErrNoVideoStream is returned when ffprobe finds no video stream.
var ErrNoVideoStream = errors.New("no video stream")

// FrameRate is a rational frame rate as reported by ffprobe.
type FrameRate struct {
	Num int64
	Den int64
}

// ParseFrameRate accepts the rational ("30000/1001", "30/1") and decimal
// ("29.97") forms ffprobe emits.
func ParseFrameRate(s string) (FrameRate, error) {
	s = strings.TrimSpace(s)
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseInt(num, 10, 64)
		if err != nil {
			return FrameRate{}, fmt.Errorf("invalid frame rate %q: %w", s, err)
		}
		d, err := strconv.ParseInt(den, 10, 64)
		if err != nil {
			return FrameRate{}, fmt.Errorf("invalid frame rate %q: %w", s, err)
		}
		r := FrameRate{Num: n, Den: d}
		if !r.Valid() {
			return FrameRate{}, fmt.Errorf("invalid frame rate %q", s)
		}
		return r, nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return FrameRate{}, fmt.Errorf("invalid frame rate %q: %w", s, err)
	}
	if f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return FrameRate{}, fmt.Errorf("invalid frame rate %q", s)
	}
	if f == math.Trunc(f) {
		return FrameRate{Num: int64(f), Den: 1}, nil
	}
	// Decimal rates are kept to millisecond-frame precision.
	return FrameRate{Num: int64(math.Round(f * 1000)), Den: 1000}, nil
}

// Valid reports whether the rate is positive and finite.
func (r FrameRate) Valid() bool {
	return r.Num > 0 && r.Den > 0
}

// Float64 returns frames per second.
func (r FrameRate) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// String renders the rate in the form ffmpeg accepts for -framerate and fps=.
func (r FrameRate) String() string {
	if r.Den == 1 {
		return strconv.FormatInt(r.Num, 10)
	}
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// VideoInfo contains information about a video file.
type VideoInfo struct {
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	FrameRate FrameRate `json:"-"`
	// Frames is the container's frame count, 0 when it does not report one.
	Frames   int     `json:"frames"`
	Codec    string  `json:"codec"`
	Duration float64 `json:"duration"`
	// Rotation is the display rotation in degrees from the stream's side
	// data or rotate tag.
	Rotation int `json:"rotation"`
}

// Size returns the dimensions of decoded frames. ffmpeg applies the display
// rotation while decoding, so a quarter turn swaps width and height.
func (v *VideoInfo) Size() geometry.Size {
	if r := ((v.Rotation % 360) + 360) % 360; r == 90 || r == 270 {
		return geometry.Size{Width: v.Height, Height: v.Width}
	}
	return geometry.Size{Width: v.Width, Height: v.Height}
}

type probeOutput struct {
	Streams []struct {
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		NbFrames     string `json:"nb_frames"`
		Duration     string `json:"duration"`
		Tags         struct {
			Rotate string `json:"rotate"`
		} `json:"tags"`
		SideDataList []struct {
			Rotation *float64 `json:"rotation"`
		} `json:"side_data_list"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// probeArgs builds the ffprobe command line for the first video stream.
func probeArgs(path string) []string {
	return []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name,width,height,r_frame_rate,avg_frame_rate,nb_frames,duration:stream_tags=rotate:stream_side_data=rotation:format=duration",
		"-of", "json",
		path,
	}
}

// parseProbe decodes ffprobe's JSON. r_frame_rate is preferred; the average
// rate is used when the container leaves r_frame_rate unset ("0/0").
func parseProbe(data []byte) (*VideoInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return nil, ErrNoVideoStream
	}
	s := out.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("invalid video dimensions %dx%d", s.Width, s.Height)
	}

	rate, err := ParseFrameRate(s.RFrameRate)
	if err != nil {
		avg, avgErr := ParseFrameRate(s.AvgFrameRate)
		if avgErr != nil {
			return nil, err
		}
		rate = avg
	}

	info := &VideoInfo{
		Width:     s.Width,
		Height:    s.Height,
		FrameRate: rate,
		Codec:     s.CodecName,
	}
	if n, err := strconv.Atoi(s.NbFrames); err == nil && n > 0 {
		info.Frames = n
	}
	dur := s.Duration
	if dur == "" || dur == "N/A" {
		dur = out.Format.Duration
	}
	info.Duration, _ = strconv.ParseFloat(dur, 64)

	for _, sd := range s.SideDataList {
		if sd.Rotation != nil {
			info.Rotation = int(*sd.Rotation)
			break
		}
	}
	if info.Rotation == 0 && s.Tags.Rotate != "" {
		info.Rotation, _ = strconv.Atoi(s.Tags.Rotate)
	}

	return info, nil
}

// Probe retrieves dimensions, frame rate and codec of a video file.
func (t *Transcoder) Probe(ctx context.Context, path string) (*VideoInfo, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	var stdout bytes.Buffer
	if err := t.run(ctx, "probe", t.cfg.FFprobePath, probeArgs(path), &stdout); err != nil {
		return nil, err
	}
	return parseProbe(stdout.Bytes())
}
