package authorization

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Service decides whether a user may perform an action on a billing object.
type Service interface {
	Authorize(ctx context.Context, userID snowflake.ID, role string, object string, action string) error
}
