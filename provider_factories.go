package bankfeed

import (
	"github.com/goliatone/go-bankfeed/core"
	"github.com/goliatone/go-bankfeed/providers/tink"
	"github.com/goliatone/go-bankfeed/providers/truelayer"
)

func TrueLayerAdapter(cfg truelayer.Config) (core.Adapter, error) {
	return truelayer.New(cfg)
}

func TinkAdapter(cfg tink.Config) (core.Adapter, error) {
	return tink.New(cfg)
}
