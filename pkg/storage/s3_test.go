package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublicObjectURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  S3Config
		want string
	}{
		{
			name: "aws virtual host",
			cfg:  S3Config{Region: "me-south-1", CertificatesBucket: "certificates"},
			want: "https://certificates.s3.me-south-1.amazonaws.com/w1/r1-1.pdf",
		},
		{
			name: "s3 compatible endpoint",
			cfg:  S3Config{Endpoint: "http://localhost:9000/", CertificatesBucket: "certificates"},
			want: "http://localhost:9000/certificates/w1/r1-1.pdf",
		},
		{
			name: "public base url wins",
			cfg:  S3Config{Endpoint: "http://minio:9000", PublicBaseURL: "https://cdn.example.com/certs", CertificatesBucket: "certificates"},
			want: "https://cdn.example.com/certs/w1/r1-1.pdf",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &S3{cfg: tt.cfg}
			require.Equal(t, tt.want, s.PublicObjectURL("w1/r1-1.pdf"))
		})
	}
}

type fakeObject struct {
	key      string
	modified time.Time
}

// fakeBucket serves the path-style subset of the S3 API the store uses.
type fakeBucket struct {
	mu       sync.Mutex
	pages    [][]fakeObject
	puts     map[string][]byte
	types    map[string]string
	deleted  []string
	listReqs []string
	deny     bool
}

func (b *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deny {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/certificates")
	key = strings.TrimPrefix(key, "/")
	switch {
	case r.Method == http.MethodPut && key != "":
		body, _ := io.ReadAll(r.Body)
		b.puts[key] = body
		b.types[key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete && key != "":
		b.deleted = append(b.deleted, key)
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodGet && key == "" && r.URL.Query().Get("list-type") == "2":
		token := r.URL.Query().Get("continuation-token")
		b.listReqs = append(b.listReqs, token)
		page := 0
		if token != "" {
			fmt.Sscanf(token, "page-%d", &page)
		}
		var sb strings.Builder
		sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"><Name>certificates</Name>`)
		for _, o := range b.pages[page] {
			fmt.Fprintf(&sb, "<Contents><Key>%s</Key><LastModified>%s</LastModified><Size>10</Size></Contents>", o.key, o.modified.UTC().Format("2006-01-02T15:04:05.000Z"))
		}
		fmt.Fprintf(&sb, "<KeyCount>%d</KeyCount>", len(b.pages[page]))
		if page+1 < len(b.pages) {
			fmt.Fprintf(&sb, "<IsTruncated>true</IsTruncated><NextContinuationToken>page-%d</NextContinuationToken>", page+1)
		} else {
			sb.WriteString("<IsTruncated>false</IsTruncated>")
		}
		sb.WriteString("</ListBucketResult>")
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, sb.String())
	default:
		http.Error(w, "unexpected request", http.StatusBadRequest)
	}
}

func newTestS3(t *testing.T, b *fakeBucket) (*S3, *httptest.Server) {
	t.Helper()
	b.puts = map[string][]byte{}
	b.types = map[string]string{}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	s, err := NewS3(context.Background(), S3Config{
		Region:             "us-east-1",
		AccessKeyID:        "test",
		SecretAccessKey:    "test",
		CertificatesBucket: "certificates",
		Endpoint:           srv.URL,
	}, nil)
	require.NoError(t, err)
	return s, srv
}

func TestS3_Upload(t *testing.T) {
	b := &fakeBucket{}
	s, srv := newTestS3(t, b)

	pdf := []byte("%PDF-1.3 certificate body")
	url, err := s.Upload(context.Background(), "w1/r1-1700000000000.pdf", ContentTypePDF, pdf)
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/certificates/w1/r1-1700000000000.pdf", url)

	b.mu.Lock()
	defer b.mu.Unlock()
	require.Contains(t, string(b.puts["w1/r1-1700000000000.pdf"]), string(pdf))
	require.Equal(t, ContentTypePDF, b.types["w1/r1-1700000000000.pdf"])
}

func TestS3_ListOlderThan(t *testing.T) {
	cutoff := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	b := &fakeBucket{pages: [][]fakeObject{
		{
			{key: "w1/old-a.pdf", modified: cutoff.Add(-48 * time.Hour)},
			{key: "w1/new-a.pdf", modified: cutoff.Add(time.Hour)},
		},
		{
			{key: "w2/old-b.pdf", modified: cutoff.Add(-time.Minute)},
			{key: "w2/at-cutoff.pdf", modified: cutoff},
		},
	}}
	s, _ := newTestS3(t, b)

	objs, err := s.ListOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, objs, 2)
	require.Equal(t, "w1/old-a.pdf", objs[0].Key)
	require.True(t, objs[0].LastModified.Equal(cutoff.Add(-48*time.Hour)))
	require.Equal(t, "w2/old-b.pdf", objs[1].Key)

	b.mu.Lock()
	defer b.mu.Unlock()
	require.Equal(t, []string{"", "page-1"}, b.listReqs, "follows the continuation token to the last page")
}

func TestS3_Delete(t *testing.T) {
	b := &fakeBucket{}
	s, _ := newTestS3(t, b)

	require.NoError(t, s.Delete(context.Background(), "w1/orphan.pdf"))
	b.mu.Lock()
	defer b.mu.Unlock()
	require.Equal(t, []string{"w1/orphan.pdf"}, b.deleted)
}

func TestS3_ErrorsPropagate(t *testing.T) {
	b := &fakeBucket{deny: true, pages: [][]fakeObject{{}}}
	s, _ := newTestS3(t, b)
	ctx := context.Background()

	_, err := s.Upload(ctx, "w1/r1.pdf", ContentTypePDF, []byte("%PDF-"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "AccessDenied")

	_, err = s.ListOlderThan(ctx, time.Now())
	require.Error(t, err)
	require.Contains(t, err.Error(), "list objects")

	err = s.Delete(ctx, "w1/r1.pdf")
	require.Error(t, err)
	require.Contains(t, err.Error(), "delete object")
}
