package store

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/UAL-RE/ReBACH/internal/bagname"
	"github.com/UAL-RE/ReBACH/internal/bagconfig"
	"github.com/UAL-RE/ReBACH/internal/model"
)

// StagingRemoteProbe lists the staging remote's bucket by shelling out to
// the s3cmd CLI, exactly as the original bagger/wasabi.py and
// redata-preservation/wasabi.py do (subprocess.run(['s3cmd', ..., 'ls',
// folder])) — this is a deliberate os/exec usage, not an SDK call, because
// the staging store's listing contract in spec.md §4.4 is explicitly
// "object listing via S3-compatible CLI".
type StagingRemoteProbe struct {
	wasabi     bagconfig.Wasabi
	bucketPath string
	runner     func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewStagingRemoteProbe builds a StagingRemoteProbe targeting
// s3://<bucket> using the given Wasabi-compatible credentials.
func NewStagingRemoteProbe(wasabi bagconfig.Wasabi) *StagingRemoteProbe {
	return &StagingRemoteProbe{
		wasabi:     wasabi,
		bucketPath: "s3://" + wasabi.Bucket,
		runner:     runS3cmd,
	}
}

func (p *StagingRemoteProbe) Origin() model.Origin { return model.OriginStagingRemote }

func runS3cmd(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.Output()
}

// Find lists the bucket and matches filenames containing both articleID
// and the zero-padded version (spec.md §4.4).
func (p *StagingRemoteProbe) Find(ctx context.Context, articleID, version int) ([]model.PreservedEntry, error) {
	out, err := p.runner(ctx, "s3cmd",
		"--access_key", p.wasabi.AccessKey,
		"--secret_key", p.wasabi.SecretKey,
		"--host", p.wasabi.Host,
		"--host-bucket", p.wasabi.HostBucket,
		"ls", p.bucketPath,
	)
	if err != nil {
		return nil, fmt.Errorf("staging remote: s3cmd ls failed: %w", err)
	}

	var entries []model.PreservedEntry
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		name, size, ok := parseS3cmdLine(scanner.Text())
		if !ok {
			continue
		}
		if !bagname.MatchesArticleVersion(name, articleID, version) {
			continue
		}
		fp, ok := bagname.ExtractFingerprint(name)
		if !ok {
			continue
		}
		entries = append(entries, model.PreservedEntry{
			Fingerprint: model.Fingerprint(fp),
			Size:        size,
			Origin:      model.OriginStagingRemote,
		})
	}
	return entries, nil
}

// parseS3cmdLine extracts the trailing filename segment and size from one
// line of `s3cmd ls` output: "DATE TIME SIZE s3://bucket/path/name". This
// mirrors the original bagger/wasabi.py's get_filenames_from_ls, which
// splits each line on "/" and keeps the last non-empty segment.
func parseS3cmdLine(line string) (name string, size int64, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return "", 0, false
	}
	size, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return "", 0, false
	}
	path := fields[3]
	segments := strings.Split(path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i], size, true
		}
	}
	return "", 0, false
}
