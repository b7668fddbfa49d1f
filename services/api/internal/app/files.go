package app

import (
	"context"
	"errors"
	"fmt"

	"lmsapi/pkg/storage"
)

var errStorageDisabled = errors.New("object storage is not configured")

type UploadURLInput struct {
	FileName    string `json:"fileName" validate:"required"`
	ContentType string `json:"contentType" validate:"required"`
	Folder      string `json:"folder"`
}

type UploadURL struct {
	UploadURL string `json:"uploadUrl"`
	FilePath  string `json:"filePath"`
}

// UploadURL signs a 15 minute PUT URL for folder/fileName.
func (a *App) UploadURL(ctx context.Context, in UploadURLInput) (UploadURL, error) {
	if err := a.check(in, "fileName and contentType are required"); err != nil {
		return UploadURL{}, err
	}
	if a.files == nil {
		return UploadURL{}, errStorageDisabled
	}
	path := storage.ObjectPath(in.Folder, in.FileName)
	url, err := a.files.PresignPut(ctx, path, in.ContentType, storage.UploadURLExpiry)
	if err != nil {
		return UploadURL{}, fmt.Errorf("sign upload url: %w", err)
	}
	return UploadURL{UploadURL: url, FilePath: path}, nil
}

type DownloadURL struct {
	DownloadURL string `json:"downloadUrl"`
	FilePath    string `json:"filePath"`
}

// DownloadURL signs a one hour GET URL. path, when set, wins over fileID.
func (a *App) DownloadURL(ctx context.Context, fileID, path string) (DownloadURL, error) {
	if path == "" {
		path = fileID
	}
	if a.files == nil {
		return DownloadURL{}, errStorageDisabled
	}
	exists, err := a.files.Exists(ctx, path)
	if err != nil {
		return DownloadURL{}, fmt.Errorf("stat file: %w", err)
	}
	if !exists {
		return DownloadURL{}, notFound("File not found")
	}
	url, err := a.files.PresignGet(ctx, path, storage.DownloadURLExpiry)
	if err != nil {
		return DownloadURL{}, fmt.Errorf("sign download url: %w", err)
	}
	return DownloadURL{DownloadURL: url, FilePath: path}, nil
}
