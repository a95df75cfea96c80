package cache

import "fmt"

// Key identifica uma projeção.
type Key string

const (
	KeyArtworks      Key = "artworks"
	KeyPlatformStats Key = "platform-stats"
	KeyActiveOffers  Key = "offers"
)

func ArtworkKey(id int64) Key { return Key(fmt.Sprintf("artwork/%d", id)) }

func DistributionKey(id int64) Key { return Key(fmt.Sprintf("distribution/%d", id)) }

func HoldingsKey(owner string) Key { return Key("holdings/" + owner) }
