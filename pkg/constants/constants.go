package constants

import "time"

const (
	// RequestIDLength is the size of the id attached to relay frames awaiting an ack.
	RequestIDLength = 16
	// CloseMessageCode is the websocket close code sent on a clean shutdown.
	CloseMessageCode = 1000
	// DefaultWSTimeout bounds how long a relay request waits for its ack.
	DefaultWSTimeout = 30 * time.Second
)

// Magazine defaults.
const (
	DefaultPages       = 4
	DefaultZoomLevel   = "2"
	DefaultShowList    = true
	DefaultTitle       = "My Magazine"
	DefaultIssueNumber = "1"
	DefaultPageRatio   = "1/1.4142"
	DefaultMargin      = 5.0
)

// Article defaults.
const (
	DefaultWordsPerPage = 500
	DefaultLineHeight   = "1/100"
	DefaultColumns      = 1
	DefaultStartPage    = 1
	// BaseWordsPerPage is the density used to derive an article's words per page.
	BaseWordsPerPage = 100
	MinColumns       = 1
	MaxColumns       = 3
)

// Page flip rendering.
const (
	FlipStrips          = 10
	FlipAmbient         = 0.4
	FlipGloss           = 0.6
	FlipSpecularDeg     = 30.0
	FlipSpecularPow     = 200.0
	FlipPerspective     = 2000.0
	FlipDuration        = time.Second
	FlipSwipeMin        = 30.0
	FlipCommitThreshold = 0.25
	FlipFadeStart       = 0.7
	FlipBackDepthFactor = 1.001
	FlipFrameInterval   = 16 * time.Millisecond
)

// Collaboration.
const (
	MessageVersion = 1
	DedupeWindow   = 10 * time.Second
	// PositionEpsilon is the smallest visual move considered a change worth broadcasting.
	PositionEpsilon = 0.01
	// DefaultShareBase is the origin share links are built on.
	DefaultShareBase = "https://flatplan.app"
)

// Images.
const (
	MaxImageSize      = 5 * 1024 * 1024
	ImageRetries      = 3
	ImageRetryBase    = time.Second
	ImageRetryFactor  = 2.0
	ImageLoadFailText = "Failed to load image. Please try again or use a different image."
)

// AllowedImageTypes lists the MIME types accepted for visuals.
var AllowedImageTypes = []string{
	"image/jpeg",
	"image/jpg",
	"image/png",
	"image/gif",
	"image/webp",
	"image/svg+xml",
}

var (
	WebsocketScheme       = "ws"
	WebsocketSecureScheme = "wss"
	HTTPScheme            = "http"
	HTTPSecureScheme      = "https"
)
