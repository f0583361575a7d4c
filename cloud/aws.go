package cloud

import (
	"github.com/HudsonReynolds2/cameraStreamer/config"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
)

// AWSConfig builds an SDK config with the static credentials from cfg.
func AWSConfig(cfg config.AWSConfig) *aws.Config {
	creds := credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretAccessKey, "")
	return aws.NewConfig().WithCredentials(creds).WithRegion(cfg.Region)
}

// NewUploader returns an S3 upload manager for cfg.
func NewUploader(cfg *aws.Config) (*s3manager.Uploader, error) {
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "error creating aws session")
	}
	return s3manager.NewUploader(sess), nil
}
