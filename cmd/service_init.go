package main

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/harvestlabs/cropscout/internal/detect"
	"github.com/harvestlabs/cropscout/internal/service"
	"github.com/harvestlabs/cropscout/pkg/roboflow"
)

// initService wires the roboflow client and arbitration policy from
// config. Commands that invoke the vendor call this; batch and loadtest
// talk to a running server instead and do not need credentials.
func initService() (*service.Service, error) {
	if missing := cfg.Validate(); len(missing) > 0 {
		return nil, eris.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}

	client := roboflow.NewClient(cfg.Roboflow.APIKey, roboflow.WithBaseURL(cfg.Roboflow.APIURL))

	return service.New(client, cfg.Roboflow, detect.Policy{
		MinConfidence: cfg.Policy.MinConfidence,
		Margin:        cfg.Policy.Margin,
	}), nil
}
