// Package publish uploads finished outputs to a Tencent Cloud Object Storage
// bucket with github.com/tencentyun/cos-go-sdk-v5.
package publish
