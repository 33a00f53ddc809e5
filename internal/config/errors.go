// SPDX-License-Identifier: MIT

package config

import "errors"

var (
	// ErrUnknownConfigField classifies strict YAML parse failures caused by unknown keys.
	ErrUnknownConfigField = errors.New("unknown config field")
	// ErrUnsupportedFormat is returned for config files that are not YAML.
	ErrUnsupportedFormat = errors.New("unsupported config format (only YAML supported)")
	// ErrMultipleDocuments is returned when the file has trailing YAML documents.
	ErrMultipleDocuments = errors.New("config file contains multiple documents")
)
