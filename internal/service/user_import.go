// 文件路径: internal/service/user_import.go
// 模块说明: 导入远端用户，为每个新用户生成随机密码，明文只在返回值里出现一次。
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/creamcroissant/panelmirror/internal/panel"
	"github.com/creamcroissant/panelmirror/internal/repository"
	"github.com/creamcroissant/panelmirror/internal/support/hash"
)

// RemoteUsers lists remote panel users.
type RemoteUsers interface {
	ListUsers(ctx context.Context) ([]panel.User, error)
}

// ImportedUser carries the generated plaintext password for the operator.
type ImportedUser struct {
	OriginID int64  `json:"origin_id" yaml:"origin_id"`
	Name     string `json:"name" yaml:"name"`
	Email    string `json:"email" yaml:"email"`
	Password string `json:"password" yaml:"password"`
}

// UserImportResult summarises one run.
type UserImportResult struct {
	Imported []ImportedUser `json:"imported" yaml:"imported"`
	Skipped  int            `json:"skipped" yaml:"skipped"`
	Failed   int            `json:"failed" yaml:"failed"`
}

// UserImportService mirrors remote users that are not known locally.
type UserImportService interface {
	Import(ctx context.Context) (UserImportResult, error)
}

type userImportService struct {
	store  repository.Store
	remote RemoteUsers
	hasher hash.Hasher
	logger *slog.Logger
}

// NewUserImportService wires the user importer.
func NewUserImportService(store repository.Store, remote RemoteUsers, hasher hash.Hasher, logger *slog.Logger) UserImportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &userImportService{store: store, remote: remote, hasher: hasher, logger: logger}
}

func (s *userImportService) Import(ctx context.Context) (UserImportResult, error) {
	var result UserImportResult
	users, err := s.remote.ListUsers(ctx)
	if err != nil {
		return result, fmt.Errorf("list remote users: %w", err)
	}

	for _, u := range users {
		exists, err := s.store.Users().ExistsByEmailAndName(ctx, u.Email, u.Username)
		if err != nil {
			result.Failed++
			s.logger.Warn("user import lookup failed", "user", u.Username, "error", err)
			continue
		}
		if exists {
			result.Skipped++
			continue
		}

		plain, hashed, err := hash.NewRandomCredential(s.hasher)
		if err != nil {
			return result, err
		}
		created, err := s.store.Users().Create(ctx, &repository.User{
			OriginID:  u.ID,
			Name:      u.Username,
			Email:     u.Email,
			Password:  hashed,
			Lang:      u.Language,
			Timezone:  u.Timezone,
			RootAdmin: u.RootAdmin,
		})
		if err != nil {
			result.Failed++
			s.logger.Warn("user import failed", "user", u.Username, "error", err)
			continue
		}
		if !created {
			result.Skipped++
			continue
		}
		result.Imported = append(result.Imported, ImportedUser{OriginID: u.ID, Name: u.Username, Email: u.Email, Password: plain})
	}

	s.logger.Info("user import finished", "imported", len(result.Imported), "skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}
