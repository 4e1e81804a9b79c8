package service

import (
	"fmt"

	"github.com/rl1809/backoffice/internal/core/domain"
)

var ErrDuplicateRequest = fmt.Errorf("duplicate request: %w", domain.ErrConflict)
