package blob

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestContentTypeFor(t *testing.T) {
	cases := map[string]string{
		"tracks/a.wav": "audio/wav",
		"tracks/a.WAV": "audio/wav",
		"tracks/b.mp3": "audio/mpeg",
		"bundle.zip":   "application/zip",
		"no-extension": "application/octet-stream",
	}
	for key, want := range cases {
		if got := ContentTypeFor(key); got != want {
			t.Errorf("ContentTypeFor(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestFSStore_Open(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "tracks"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "tracks", "song.wav"), []byte("RIFF...."), 0o644); err != nil {
		t.Fatal(err)
	}
	// outside the root
	if err := os.WriteFile(filepath.Join(filepath.Dir(root), "secret.wav"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewFSStore(root)
	obj, err := s.Open(context.Background(), "tracks/song.wav")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer obj.Body.Close()
	b, _ := io.ReadAll(obj.Body)
	if string(b) != "RIFF...." || obj.ContentLength != 8 || obj.ContentType != "audio/wav" {
		t.Fatalf("unexpected object: len=%d type=%s body=%q", obj.ContentLength, obj.ContentType, b)
	}

	for _, key := range []string{"tracks/missing.wav", "../secret.wav", "tracks"} {
		if _, err := s.Open(context.Background(), key); !errors.Is(err, ErrNotFound) {
			t.Errorf("Open(%q) = %v, want ErrNotFound", key, err)
		}
	}
}

type mockS3 struct {
	objects map[string]string
	err     error
}

func (m *mockS3) GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	body, ok := m.objects[*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	n := int64(len(body))
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body)), ContentLength: &n}, nil
}

func (m *mockS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	if _, ok := m.objects[*in.Key]; !ok {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

type mockPresigner struct {
	in      *s3.GetObjectInput
	expires time.Duration
}

func (m *mockPresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	m.in, m.expires = in, opts.Expires
	return &v4.PresignedHTTPRequest{URL: "https://audio.s3.amazonaws.com/" + *in.Key + "?X-Amz-Signature=sig", Method: "GET"}, nil
}

func TestS3Store_Link(t *testing.T) {
	p := &mockPresigner{}
	s := NewS3Store(&mockS3{objects: map[string]string{"tracks/a.wav": "RIFF"}}, "audio").WithPresigner(p)

	url, err := s.Link(context.Background(), "tracks/a.wav", "midnight-drive.wav", 5*time.Minute)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if !strings.HasPrefix(url, "https://audio.s3.amazonaws.com/tracks/a.wav") {
		t.Fatalf("unexpected url %q", url)
	}
	if p.expires != 5*time.Minute {
		t.Fatalf("expected 5m expiry, got %s", p.expires)
	}
	if *p.in.Bucket != "audio" || *p.in.ResponseContentDisposition != `attachment; filename="midnight-drive.wav"` {
		t.Fatalf("unexpected presign input %+v", p.in)
	}
	if *p.in.ResponseContentType != "audio/wav" || *p.in.ResponseCacheControl != "no-store" {
		t.Fatalf("unexpected response overrides %+v", p.in)
	}

	p.in = nil
	if _, err := s.Link(context.Background(), "tracks/missing.wav", "x.wav", time.Minute); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if p.in != nil {
		t.Fatalf("missing objects must not be presigned")
	}
}

func TestS3Store_LinkWithoutPresigner(t *testing.T) {
	s := NewS3Store(&mockS3{objects: map[string]string{"a.wav": "RIFF"}}, "audio")
	if _, err := s.Link(context.Background(), "a.wav", "a.wav", time.Minute); err == nil {
		t.Fatalf("expected error without a presigner")
	}
}

func TestS3Store_Open(t *testing.T) {
	s := NewS3Store(&mockS3{objects: map[string]string{"a/b.mp3": "ID3"}}, "audio")

	obj, err := s.Open(context.Background(), "a/b.mp3")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if obj.ContentLength != 3 || obj.ContentType != "audio/mpeg" {
		t.Fatalf("unexpected object %+v", obj)
	}

	if _, err := s.Open(context.Background(), "missing.wav"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestS3Store_TransportError(t *testing.T) {
	s := NewS3Store(&mockS3{err: errors.New("timeout")}, "audio")
	_, err := s.Open(context.Background(), "x.wav")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}
