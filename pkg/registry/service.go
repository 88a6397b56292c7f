package registry

import (
	"context"
)

// Publisher defines the main interface of the registry library
type Publisher interface {
	// Publish decodes a framed publish request and registers it exactly once
	Publish(ctx context.Context, body []byte) (*PublishResult, error)

	// Read path
	GetPackage(ctx context.Context, name string) (*PackageInfo, error)
	GetVersion(ctx context.Context, name, version string) (*PackageRecord, error)
}
