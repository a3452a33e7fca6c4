package gateway

import (
	"regexp"

	"github.com/strataml/strata/core"
)

// DefaultWorkspace is used when no scoping hint is present anywhere in the
// request.
const DefaultWorkspace = "default"

var systemWorkspaceRe = regexp.MustCompile(`(?i)(?:workspace|project)\s*[:=]\s*["']?(\S+?)["']?(?:\s|$)`)

// DeriveWorkspace resolves the tenant scope for a chat request.
// Precedence: explicit body field, then the X-Workspace header, then a
// workspace/project declaration inside the system prompt, then the
// default. The result is always sanitized to a safe identifier.
func DeriveWorkspace(req *ChatCompletionRequest, headerWorkspace string) string {
	if req.Workspace != "" {
		return sanitizeWorkspace(req.Workspace)
	}
	if headerWorkspace != "" {
		return sanitizeWorkspace(headerWorkspace)
	}
	for _, msg := range req.Messages {
		if msg.Role != core.RoleSystem || msg.Content == "" {
			continue
		}
		if m := systemWorkspaceRe.FindStringSubmatch(msg.Content); m != nil {
			return sanitizeWorkspace(m[1])
		}
	}
	return DefaultWorkspace
}

func sanitizeWorkspace(name string) string {
	cleaned := core.NormalizeWorkspace(name)
	if cleaned == "" {
		return DefaultWorkspace
	}
	return cleaned
}
