package api

import (
	"github.com/starford/fsgate/internal/audit"
	"github.com/starford/fsgate/internal/command"
)

// CommandResponse is the envelope of every command invocation.
type CommandResponse struct {
	OK      bool         `json:"ok" example:"true"`
	Content *string      `json:"content,omitempty" example:"file contents"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail describes a failure. Kind is stable; Message is for humans.
type ErrorDetail struct {
	Kind    string `json:"kind" example:"NotFound" validate:"required"`
	Message string `json:"message" example:"open /data/x.txt: no such file or directory" validate:"required"`
}

// CommandListResponse wraps the command descriptors.
type CommandListResponse struct {
	Commands []command.Descriptor `json:"commands" validate:"required"`
}

// AuditListResponse wraps recent audit entries, newest first.
type AuditListResponse struct {
	Entries []audit.Entry `json:"entries" validate:"required"`
}
