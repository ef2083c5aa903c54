package openstack

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/objectstorage/v1/objects"

	"github.com/dacirco/dacirco/internal/log"
)

const (
	// SourceVideosContainer holds the videos waiting to be transcoded.
	SourceVideosContainer = "videos"
	// TranscodedVideosContainer holds the transcoder results.
	TranscodedVideosContainer = "CompressedVideos"
)

//go:generate mockery --case underscore --output openstackmock --outpkg openstackmock --name ObjectStore

// ObjectMetadata is the subset of Swift object metadata the service exposes.
type ObjectMetadata struct {
	Name         string
	Size         int64
	LastModified time.Time
}

// ObjectStore knows how to check and move videos in the Swift object store.
type ObjectStore interface {
	Exists(ctx context.Context, container, name string) (bool, error)
	Metadata(ctx context.Context, container, name string) (*ObjectMetadata, error)
	List(ctx context.Context, container string) ([]string, error)
	Download(ctx context.Context, container, name string) (io.ReadCloser, error)
	Upload(ctx context.Context, container, name string, content io.Reader) error
}

type objectStore struct {
	client *gophercloud.ServiceClient
	logger log.Logger
}

// NewObjectStore returns an ObjectStore backed by Swift.
func NewObjectStore(client *gophercloud.ServiceClient, logger log.Logger) ObjectStore {
	return objectStore{
		client: client,
		logger: logger.WithValues(log.Kv{"service": "openstack.ObjectStore"}),
	}
}

func (o objectStore) Exists(ctx context.Context, container, name string) (bool, error) {
	_, err := objects.Get(ctx, o.client, container, name, objects.GetOpts{}).Extract()
	if err != nil {
		if gophercloud.ResponseCodeIs(err, 404) {
			return false, nil
		}

		return false, fmt.Errorf("could not check object %s/%s: %w", container, name, err)
	}

	return true, nil
}

func (o objectStore) Metadata(ctx context.Context, container, name string) (*ObjectMetadata, error) {
	header, err := objects.Get(ctx, o.client, container, name, objects.GetOpts{}).Extract()
	if err != nil {
		return nil, fmt.Errorf("could not get object %s/%s metadata: %w", container, name, err)
	}

	return &ObjectMetadata{
		Name:         name,
		Size:         header.ContentLength,
		LastModified: header.LastModified,
	}, nil
}

func (o objectStore) List(ctx context.Context, container string) ([]string, error) {
	pages, err := objects.List(o.client, container, objects.ListOpts{}).AllPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list container %q: %w", container, err)
	}

	names, err := objects.ExtractNames(pages)
	if err != nil {
		return nil, fmt.Errorf("could not extract object names of container %q: %w", container, err)
	}

	return names, nil
}

func (o objectStore) Download(ctx context.Context, container, name string) (io.ReadCloser, error) {
	res := objects.Download(ctx, o.client, container, name, objects.DownloadOpts{})
	if res.Err != nil {
		return nil, fmt.Errorf("could not download object %s/%s: %w", container, name, res.Err)
	}

	return res.Body, nil
}

func (o objectStore) Upload(ctx context.Context, container, name string, content io.Reader) error {
	o.logger.WithCtxValues(ctx).Debugf("Uploading object %s/%s", container, name)
	err := objects.Create(ctx, o.client, container, name, objects.CreateOpts{Content: content}).Err
	if err != nil {
		return fmt.Errorf("could not upload object %s/%s: %w", container, name, err)
	}

	return nil
}
