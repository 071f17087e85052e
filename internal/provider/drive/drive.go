// Package drive implements the provider.Provider capability surface
// against Google Drive using google.golang.org/api.
package drive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kipbackup/kip/internal/kerrors"
	"github.com/kipbackup/kip/internal/provider"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Backend implements provider.Provider against a Google Drive account.
// Every job gets a parent folder named after its job ID, with a
// "chunks" subfolder holding uploaded chunk objects; folderID is the
// subfolder's Drive ID.
type Backend struct {
	svc      *drive.Service
	jobID    string
	folderID string
}

// listPageSize matches the Rust implementation's LIST_PAGE_SIZE.
const listPageSize = 1000

// New dials the Drive API with the given credentials option (e.g.
// option.WithCredentialsFile or option.WithTokenSource) and ensures the
// job's parent/chunks folder pair exists, creating it when
// parentFolderID is empty.
func New(ctx context.Context, jobID, parentFolderID string, opts ...option.ClientOption) (*Backend, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, kerrors.New(kerrors.KindConfig, "drive.New", fmt.Errorf("create drive service: %w", err))
	}

	b := &Backend{svc: svc, jobID: jobID, folderID: parentFolderID}
	if b.folderID == "" {
		folderID, err := b.ensureJobFolder(ctx)
		if err != nil {
			return nil, err
		}
		b.folderID = folderID
	}
	return b, nil
}

func (b *Backend) ensureJobFolder(ctx context.Context) (string, error) {
	jobFolder, err := b.svc.Files.Create(&drive.File{
		Name:     b.jobID,
		MimeType: "application/vnd.google-apps.folder",
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", kerrors.New(kerrors.KindProvider, "drive.ensureJobFolder", fmt.Errorf("create job folder: %w", err))
	}

	chunksFolder, err := b.svc.Files.Create(&drive.File{
		Name:     "chunks",
		Parents:  []string{jobFolder.Id},
		MimeType: "application/vnd.google-apps.folder",
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", kerrors.New(kerrors.KindProvider, "drive.ensureJobFolder", fmt.Errorf("create chunks folder: %w", err))
	}
	return chunksFolder.Id, nil
}

func (b *Backend) Kind() string { return "drive" }

func (b *Backend) Upload(ctx context.Context, key string, src io.Reader, size int64) error {
	name := chunkName(key)
	_, err := b.svc.Files.Create(&drive.File{
		Name:    name,
		Parents: []string{b.folderID},
	}).Media(src, googleapi.ContentType("application/octet-stream")).Context(ctx).Do()
	if err != nil {
		return kerrors.New(kerrors.KindProvider, "drive.Upload", fmt.Errorf("upload %s: %w", name, err))
	}
	return nil
}

func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	id, err := b.resolveFileID(ctx, key)
	if err != nil {
		return nil, err
	}
	resp, err := b.svc.Files.Get(id).SupportsAllDrives(false).AcknowledgeAbuse(true).Context(ctx).Download()
	if err != nil {
		return nil, kerrors.New(kerrors.KindProvider, "drive.Download", fmt.Errorf("download %s: %w", key, err))
	}
	return resp.Body, nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	id, err := b.resolveFileID(ctx, key)
	if err != nil {
		if kerrors.Is(err, kerrors.KindIntegrity) {
			return nil
		}
		return err
	}
	if err := b.svc.Files.Delete(id).Context(ctx).Do(); err != nil {
		return kerrors.New(kerrors.KindProvider, "drive.Delete", fmt.Errorf("delete %s: %w", key, err))
	}
	return nil
}

func (b *Backend) Contains(ctx context.Context, key string) (bool, error) {
	_, err := b.resolveFileID(ctx, key)
	if err != nil {
		if kerrors.Is(err, kerrors.KindIntegrity) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (b *Backend) ListAll(ctx context.Context, prefix string) ([]provider.ObjectInfo, error) {
	var objects []provider.ObjectInfo
	pageToken := ""
	for {
		call := b.svc.Files.List().
			Q(fmt.Sprintf("'%s' in parents and trashed = false", b.folderID)).
			Spaces("drive").
			PageSize(listPageSize).
			Fields("nextPageToken, files(id, name, size)").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		result, err := call.Do()
		if err != nil {
			return nil, kerrors.New(kerrors.KindProvider, "drive.ListAll", fmt.Errorf("list: %w", err))
		}
		for _, f := range result.Files {
			if !strings.HasPrefix(f.Name, prefix) && prefix != "" {
				continue
			}
			objects = append(objects, provider.ObjectInfo{Key: f.Name, Size: f.Size})
		}
		if result.NextPageToken == "" {
			break
		}
		pageToken = result.NextPageToken
	}
	return objects, nil
}

// resolveFileID looks up the Drive file ID for a chunk key by listing
// the job's chunks folder and matching on name, since Drive has no
// native "get by name" lookup.
func (b *Backend) resolveFileID(ctx context.Context, key string) (string, error) {
	name := chunkName(key)
	result, err := b.svc.Files.List().
		Q(fmt.Sprintf("'%s' in parents and name = '%s' and trashed = false", b.folderID, name)).
		Spaces("drive").
		Fields("files(id, name)").
		Context(ctx).Do()
	if err != nil {
		return "", kerrors.New(kerrors.KindProvider, "drive.resolveFileID", fmt.Errorf("lookup %s: %w", name, err))
	}
	if len(result.Files) == 0 {
		return "", kerrors.New(kerrors.KindIntegrity, "drive.resolveFileID", fmt.Errorf("chunk %s not found", name))
	}
	return result.Files[0].Id, nil
}

// chunkName strips the "<job>/chunks/" namespace prefix a provider-
// agnostic key carries, since Drive files live directly inside the
// job's chunks folder and only need the trailing "<hash>.chunk" name.
func chunkName(key string) string {
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		return key[idx+1:]
	}
	return key
}

// StripHashFromName recovers a chunk hash from a Drive object name
// ("<hash>.chunk"), mirroring the Rust strip_hash_from_gdrive helper.
func StripHashFromName(name string) string {
	if idx := strings.Index(name, "."); idx >= 0 {
		return name[:idx]
	}
	return name
}
