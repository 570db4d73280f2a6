/*
Package filesystem provides the file handling guarantees the pipeline relies on:
atomic outputs, scoped scratch workspaces, and retry logic for NFS stale file
handle errors.

# Atomic Outputs

An Output reserves a hidden partial file in the destination directory. Writers
(the image codec, or ffmpeg via its output argument) produce the content at
Output.Path, then Commit renames it over the final path. Abort, typically
deferred, removes the partial when anything failed:

	out, err := filesystem.NewOutput(filepath.Join(outDir, "art.webm"))
	if err != nil {
	    return err
	}
	defer out.Abort()

	if err := encode(out.Path()); err != nil {
	    return err
	}
	return out.Commit()

The partial keeps the final extension (".art.partial-1234.webm") so ffmpeg
can still pick the muxer from the name.

# Workspaces

NewWorkspace creates a unique directory with os.MkdirTemp. Cleanup removes it
and is meant to be deferred so frames never outlive the file being processed.

# Retry Behavior

StatWithRetry, OpenWithRetry and ReadDirWithRetry wrap the os calls with
exponential backoff for ESTALE (errno 116), the error NFS mounts return when
a file handle goes stale. Defaults:
  - MaxRetries: 3 attempts
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

All other errors fail immediately. Commit retries its rename the same way.
*/
package filesystem
