package resources

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"go.uber.org/zap"
)

const defaultBlobTimeout = 30 * time.Second

// BlobNamespace serves resources from an Azure Blob Storage container.
// Blob names map to namespace paths by prefixing "/", and "/" delimited
// blob prefixes are reported as directories.
type BlobNamespace struct {
	client        *azblob.Client
	serviceURL    string
	containerName string
	timeout       time.Duration
	logger        *zap.Logger
}

// NewBlobNamespace creates a namespace from a standard storage connection
// string. Plain http endpoints, such as a local emulator, are allowed.
func NewBlobNamespace(connectionString, containerName string, logger *zap.Logger) (*BlobNamespace, error) {
	switch {
	case logger == nil:
		return nil, fmt.Errorf("logger is required")
	case connectionString == "":
		return nil, fmt.Errorf("connection string is required")
	case containerName == "":
		return nil, fmt.Errorf("container name is required")
	}

	opts := &azblob.ClientOptions{}
	if strings.Contains(strings.ToLower(connectionString), "=http://") {
		opts.ClientOptions = azcore.ClientOptions{InsecureAllowCredentialWithHTTP: true}
	}

	client, err := azblob.NewClientFromConnectionString(connectionString, opts)
	if err != nil {
		return nil, fmt.Errorf("invalid blob connection string: %w", err)
	}

	logger.Debug("Blob namespace ready",
		zap.String("service", client.URL()),
		zap.String("container", containerName))

	return &BlobNamespace{
		client:        client,
		serviceURL:    strings.TrimRight(client.URL(), "/"),
		containerName: containerName,
		timeout:       defaultBlobTimeout,
		logger:        logger,
	}, nil
}

// List implements Namespace.
func (b *BlobNamespace) List(dir string) ([]string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	prefix := blobPrefix(dir)
	pager := b.client.ServiceClient().NewContainerClient(b.containerName).
		NewListBlobsHierarchyPager("/", &container.ListBlobsHierarchyOptions{
			Prefix: to.Ptr(prefix),
		})

	var paths []string
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			b.logger.Debug("Failed to list blobs",
				zap.String("container", b.containerName),
				zap.String("prefix", prefix),
				zap.Error(err))
			return nil, false
		}
		if page.Segment == nil {
			continue
		}
		for _, p := range page.Segment.BlobPrefixes {
			if p.Name != nil {
				paths = append(paths, "/"+*p.Name)
			}
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				paths = append(paths, "/"+*item.Name)
			}
		}
	}

	if len(paths) == 0 {
		return nil, false
	}
	sort.Strings(paths)
	return paths, true
}

// Open implements Namespace. The returned reader must be closed.
func (b *BlobNamespace) Open(path string) (io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)

	resp, err := b.client.DownloadStream(ctx, b.containerName, strings.TrimPrefix(path, "/"), nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to download blob: %w", err)
	}
	return &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}, nil
}

// RealPath implements Namespace. Blobs have no local path; the blob URL is
// returned for display.
func (b *BlobNamespace) RealPath(path string) (string, bool) {
	return fmt.Sprintf("%s/%s/%s", b.serviceURL, b.containerName, strings.TrimPrefix(path, "/")), false
}

// blobPrefix converts a namespace directory to a blob listing prefix.
func blobPrefix(dir string) string {
	p := strings.TrimPrefix(dir, "/")
	if p != "" && !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}

var _ Namespace = (*BlobNamespace)(nil)
