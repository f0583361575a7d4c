package aws

import (
	"io"

	"github.com/HudsonReynolds2/cameraStreamer/config"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// S3Storage uploads JPEG stills into a bucket.
type S3Storage struct {
	S3     s3manageriface.UploaderAPI
	Bucket string
}

// UploadFile stores r under key and returns the object location.
func (s3 *S3Storage) UploadFile(r io.Reader, key string) (string, error) {
	result, err := s3.S3.Upload(&s3manager.UploadInput{
		Bucket:      aws.String(s3.Bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", errors.Wrapf(err, "error uploading %s", key)
	}
	log.WithField("location", result.Location).Debug("still uploaded")
	return result.Location, nil
}

func NewS3Storage(u s3manageriface.UploaderAPI, cfg config.AWSConfig) *S3Storage {
	return &S3Storage{S3: u, Bucket: cfg.S3Bucket}
}
