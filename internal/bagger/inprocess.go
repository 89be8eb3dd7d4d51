package bagger

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/UAL-RE/ReBACH/internal/bagconfig"
)

// InProcessDriver handles the [system] post_process_script_command ==
// "Bagger" selector (SPEC_FULL.md §4.8a's Open Question decision, see
// DESIGN.md): instead of shelling out to DART, it tars the package
// directory itself and uploads the result straight to the Wasabi staging
// bucket. Job.Tags are not written into the archive. Tar assembly is
// adapted from pkg/caryatid/vagrant_box.go's archive/tar usage; the upload
// path and duplicate-object check are adapted from
// pkg/caryatid/backend_s3.go's CaryatidS3Backend (session/s3/s3manager
// wiring, aws/awserr code switch).
type InProcessDriver struct {
	Wasabi     bagconfig.Wasabi
	Overwrite  bool
	S3Service  *s3.S3
	S3Uploader *s3manager.Uploader
}

// NewInProcessDriver builds an InProcessDriver against the Wasabi bucket,
// using static credentials the way the bagger's own s3cmd invocations do
// (explicit access/secret keys and host, not the ambient AWS credential
// chain aws-sdk-go would otherwise use for the final-remote store).
func NewInProcessDriver(wasabi bagconfig.Wasabi, overwrite bool) (*InProcessDriver, error) {
	sess, err := session.NewSession(&aws.Config{
		Endpoint:         aws.String(wasabi.Host),
		Region:           aws.String("us-east-1"),
		S3ForcePathStyle: aws.Bool(true),
		Credentials:      credentials.NewStaticCredentials(wasabi.AccessKey, wasabi.SecretKey, ""),
	})
	if err != nil {
		return nil, fmt.Errorf("bagger: failed to build Wasabi session: %w", err)
	}
	return &InProcessDriver{
		Wasabi:     wasabi,
		Overwrite:  overwrite,
		S3Service:  s3.New(sess),
		S3Uploader: s3manager.NewUploader(sess),
	}, nil
}

// Run tars job's files into a single archive under a temp file, checks for
// a pre-existing object of the same bag name (duplicate-bag contract per
// original_source/bagger/__init__.py's Status.DUPLICATE_BAG), and uploads
// it to the Wasabi bucket.
func (d *InProcessDriver) Run(ctx context.Context, job Job) (Result, error) {
	key := job.BagName + ".tar"

	exists, err := d.objectExists(ctx, key)
	if err != nil {
		return Result{Status: StatusWasabiError}, fmt.Errorf("bagger: failed to check for existing object %q: %w", key, err)
	}
	if exists && !d.Overwrite {
		return Result{Status: StatusDuplicateBag}, fmt.Errorf("bagger: %q already exists in bucket %q", key, d.Wasabi.Bucket)
	}

	tarPath, err := buildTar(job)
	if err != nil {
		return Result{Status: StatusInvalidPackage}, fmt.Errorf("bagger: failed to build tar for %q: %w", job.BagName, err)
	}
	defer os.Remove(tarPath)

	file, err := os.Open(tarPath)
	if err != nil {
		return Result{Status: StatusError}, err
	}
	defer file.Close()

	_, err = d.S3Uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(d.Wasabi.Bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return Result{Status: StatusWasabiError}, fmt.Errorf("bagger: failed to upload %q: %w", key, err)
	}

	return Result{Status: StatusSuccess}, nil
}

func (d *InProcessDriver) objectExists(ctx context.Context, key string) (bool, error) {
	_, err := d.S3Service.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.Wasabi.Bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if aerr, ok := err.(awserr.Error); ok && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound") {
		return false, nil
	}
	return false, err
}

// buildTar archives job.Files (each a file or directory path) into a temp
// *.tar file and returns its path.
func buildTar(job Job) (string, error) {
	out, err := os.CreateTemp("", "rebach-bag-*.tar")
	if err != nil {
		return "", err
	}
	defer out.Close()

	tw := tar.NewWriter(out)
	defer tw.Close()

	for _, root := range job.Files {
		if err := addToTar(tw, root); err != nil {
			return "", err
		}
	}

	return out.Name(), nil
}

func addToTar(tw *tar.Writer, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(filepath.Dir(root), path)
		if err != nil {
			return err
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = rel

		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = io.Copy(tw, file)
		return err
	})
}
