package services

import (
	"anonlink/repositories"
	"anonlink/storage"
)

type Container struct {
	Auth    AuthService
	User    UserService
	File    FileService
	Access  AccessService
	Cleanup CleanupService
}

func NewContainer(repos repositories.Container, store storage.BlobStore) *Container {
	tokens := NewTokenIssuer()
	cleanup := NewCleanupService(repos.TxManager, repos.Users, repos.Files, store)

	return &Container{
		Auth:    NewAuthService(repos.TxManager, repos.Users),
		User:    NewUserService(repos.Users),
		File:    NewFileService(repos.TxManager, repos.Users, repos.Files, store, tokens),
		Access:  NewAccessService(repos.Files, repos.DownloadLogs, store, cleanup),
		Cleanup: cleanup,
	}
}
