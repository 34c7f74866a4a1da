package document

import (
	"context"
	"time"

	"github.com/flatplan/flatplan.go/pkg/models"
)

// Origin says where a mutation came from.
type Origin int

const (
	// Local mutations come from this process and may be broadcast.
	Local Origin = iota
	// Remote mutations arrived from a peer and are never re-broadcast.
	Remote
)

func (o Origin) String() string {
	if o == Remote {
		return "remote"
	}
	return "local"
}

// ApplyOptions travel alongside every mutation instead of being stored on the
// entities themselves.
type ApplyOptions struct {
	Broadcast bool
	Origin    Origin
	// User is recorded in the history entry of the change.
	User *models.User
	// At is when the peer made a remote change. Zero for local changes.
	At time.Time
}

// LocalChange is the usual option set for an edit made in this process.
func LocalChange() ApplyOptions {
	return ApplyOptions{Broadcast: true, Origin: Local}
}

// RemoteChange is the option set for applying a peer's edit.
func RemoteChange(user *models.User, at time.Time) ApplyOptions {
	return ApplyOptions{Origin: Remote, User: user, At: at}
}

func (o ApplyOptions) shouldBroadcast() bool {
	return o.Broadcast && o.Origin == Local
}

// ChangeKind identifies what a Change carries.
type ChangeKind int

const (
	ArticleAdded ChangeKind = iota + 1
	ArticleUpdated
	ArticleDeleted
	ArticlesReordered
	MagazineUpdated
	ShareStateUpdated
)

func (k ChangeKind) String() string {
	switch k {
	case ArticleAdded:
		return "article added"
	case ArticleUpdated:
		return "article updated"
	case ArticleDeleted:
		return "article deleted"
	case ArticlesReordered:
		return "articles reordered"
	case MagazineUpdated:
		return "magazine updated"
	case ShareStateUpdated:
		return "share state updated"
	}
	return "unknown change"
}

// Change is a mutation as it should be announced to peers.
type Change struct {
	Kind ChangeKind
	// Article is set for ArticleAdded and ArticleUpdated.
	Article *models.Article
	// ArticleID is set for ArticleDeleted.
	ArticleID string
	// Articles is the full ordered list for ArticlesReordered.
	Articles []models.Article
	// Snapshot is set for MagazineUpdated.
	Snapshot *models.Snapshot
	// AllowEdit is set for ShareStateUpdated.
	AllowEdit bool
}

// Broadcaster publishes local changes to peers.
type Broadcaster interface {
	Publish(ctx context.Context, change Change) error
}
