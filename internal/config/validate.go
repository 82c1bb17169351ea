// Listenimport - ListenBrainz Listen History Importer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listenimport

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/listenimport/internal/validation"
)

// ErrMissingToken is returned when no token is configured for a real run.
var ErrMissingToken = errors.New("listenbrainz.token is required (set --token or LISTENBRAINZ_TOKEN)")

// Validate checks the configuration and normalizes the token to its
// hyphenated form.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	if c.ListenBrainz.Token == "" {
		if !c.Import.DryRun {
			return ErrMissingToken
		}
	} else {
		token, err := uuid.Parse(c.ListenBrainz.Token)
		if err != nil {
			return fmt.Errorf("listenbrainz.token: %w", err)
		}
		c.ListenBrainz.Token = token.String()
	}

	before, after, err := c.Import.Window()
	if err != nil {
		return err
	}
	if before != nil && after != nil && !after.Before(*before) {
		return fmt.Errorf("import.after (%s) must be earlier than import.before (%s)",
			after.Format(time.RFC3339), before.Format(time.RFC3339))
	}

	if _, err := c.Loader.CompiledPatterns(); err != nil {
		return err
	}

	return nil
}
