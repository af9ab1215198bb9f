// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// config.go - Codec configuration: the shared type registry, the optional
// relation loader and type resolver hooks, and the ambient logger, metrics
// recorder and clock, with defaults applied by New.

package ormpack

import (
	"reflect"

	vm "github.com/VictoriaMetrics/metrics"

	"github.com/AndrewDonelson/ormpack/internal/clock"
	"github.com/AndrewDonelson/ormpack/internal/metrics"
)

// Re-export types so callers only import this package.
type (
	MetricsRecorder = metrics.MetricsRecorder
	Clock           = clock.Clock
)

// TypeResolver maps a qualified type name that is not in the registry to a
// record type. It reports false when the name is unknown.
type TypeResolver func(qualifiedName string) (reflect.Type, bool)

// Config contains all Codec configuration.
type Config struct {
	// Registry maps record types to wire ids. Codecs that must decode each
	// other's payloads share one registry; nil creates a private registry.
	Registry *Registry

	// Loader fetches relations that must be inlined but are not materialized.
	Loader RelationLoader

	// Resolver is consulted for MODEL names the registry has never seen.
	Resolver TypeResolver

	// Optional overrideable components
	Logger  Logger
	Metrics MetricsRecorder
	Clock   Clock
}

func (c *Config) defaults() {
	if c.Registry == nil {
		c.Registry = NewRegistry()
	}
	if c.Logger == nil {
		c.Logger = noopLogger{}
	}
	if c.Metrics == nil {
		c.Metrics = metrics.Noop{}
	}
	if c.Clock == nil {
		c.Clock = clock.Real{}
	}
}

// NewVictoriaMetrics returns a MetricsRecorder that writes into set.
// A nil set creates a private one.
func NewVictoriaMetrics(set *vm.Set) *metrics.Victoria {
	return metrics.NewVictoria(set)
}
