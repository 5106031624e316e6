package oss

import (
	"io"
	"os"

	"officeflow/session"

	aliyun "github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

var (
	AttachmentBucket *aliyun.Bucket

	GetObjectFunc  func(string, *session.Session, ...aliyun.Option) (io.ReadCloser, error)
	PutObjectFunc  func(string, io.Reader, *session.Session, ...aliyun.Option) error
	SignObjectFunc func(string, int64, *session.Session) (string, error)
)

func Bootstrap() {
	var err error
	AttachmentBucket, err = BuildBucketFromEnv()
	if err != nil {
		panic(err)
	}

	GetObjectFunc = GetObject
	PutObjectFunc = PutObject
	SignObjectFunc = SignObject
}

func BuildBucketFromEnv() (*aliyun.Bucket, error) {
	endpoint := os.ExpandEnv(os.Getenv("OSS_ENDPOINT"))
	if endpoint == "" {
		endpoint = "dummy"
	}
	accessKey := os.Getenv("OSS_ACCESS_KEY")
	secretKey := os.Getenv("OSS_SECRET_KEY")
	bucket := os.Getenv("OSS_BUCKET")
	if bucket == "" {
		bucket = "officeflow"
	}
	return BuildBucket(endpoint, accessKey, secretKey, bucket)
}

func BuildBucket(endpoint, accesskey, secretKey, bucketName string) (*aliyun.Bucket, error) {
	// endpoint http://oss-cn-hangzhou.aliyuncs.com
	cli, err := aliyun.New(endpoint, accesskey, secretKey)
	if err != nil {
		return nil, err
	}

	bucket, err := cli.Bucket(bucketName)
	if err != nil {
		return nil, err
	}
	return bucket, nil
}

func GetObject(key string, s *session.Session, opts ...aliyun.Option) (io.ReadCloser, error) {
	childSpan := startObjectSpan("get-object", key, s)
	r, err := AttachmentBucket.GetObject(key, opts...)
	finishObjectSpan(childSpan, err)
	return r, err
}

func PutObject(key string, r io.Reader, s *session.Session, opts ...aliyun.Option) error {
	childSpan := startObjectSpan("put-object", key, s)
	err := AttachmentBucket.PutObject(key, r, opts...)
	finishObjectSpan(childSpan, err)
	return err
}

// SignObject returns a pre-signed download URL valid for expiredInSec seconds.
func SignObject(key string, expiredInSec int64, s *session.Session) (string, error) {
	childSpan := startObjectSpan("sign-object", key, s)
	url, err := AttachmentBucket.SignURL(key, aliyun.HTTPGet, expiredInSec)
	finishObjectSpan(childSpan, err)
	return url, err
}

func startObjectSpan(operation, key string, s *session.Session) *opentracing.Span {
	if s == nil || s.Context == nil {
		return nil
	}
	parentSpan := opentracing.SpanFromContext(s.Context)
	if parentSpan == nil {
		return nil
	}
	tracer := parentSpan.Tracer()
	sp := tracer.StartSpan(operation, opentracing.ChildOf(parentSpan.Context()))
	sp.SetTag("object-key", key)
	return &sp
}

func finishObjectSpan(span *opentracing.Span, err error) {
	if span == nil {
		return
	}
	ext.Error.Set(*span, err != nil)
	(*span).Finish()
}
