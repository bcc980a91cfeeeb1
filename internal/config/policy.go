package config

import (
	"sync/atomic"
	"time"

	"globalblock/internal/support"
)

const (
	defaultAutoblockTTL       = 24 * time.Hour
	defaultAutoblockRetroMax  = 10
	defaultExemptListTTL      = 6 * time.Hour
	defaultExemptListTimeout  = 30 * time.Second
	defaultAnonOnlyCoversTemp = true
)

// Policy groups the deployment-level switches of the block engine. It is
// loaded once from the environment and treated as immutable afterwards;
// tests construct their own values directly.
type Policy struct {
	// LocalWikiID names the wiki this process serves. Local status
	// overrides are keyed against it.
	LocalWikiID string

	// XFFLookup enables scanning the forwarded-for chain for block
	// candidates in addition to the connecting address.
	XFFLookup bool

	// AnonOnlyCoversTemp decides whether anon-only blocks also apply to
	// temporary accounts. Deployment policy, deliberately not hard-coded.
	AnonOnlyCoversTemp bool

	// AutoblockTTL is the fixed lifetime of a derived autoblock, always
	// shorter-lived than a typical parent block.
	AutoblockTTL time.Duration

	// AutoblockRetroLimit caps how many recent IPs the retroactive pass
	// will autoblock for one parent.
	AutoblockRetroLimit int

	// ExemptListURLs are externally hosted lists of addresses that must
	// never be autoblocked.
	ExemptListURLs    []string
	ExemptListTTL     time.Duration
	ExemptListTimeout time.Duration
}

var current atomic.Value

// Load reads the policy from the environment and caches it.
func Load() Policy {
	p := Policy{
		LocalWikiID:         support.GetEnv("GB_LOCAL_WIKI", "localwiki"),
		XFFLookup:           support.GetEnvBool("GB_XFF_LOOKUP", false),
		AnonOnlyCoversTemp:  support.GetEnvBool("GB_ANON_ONLY_INCLUDES_TEMP", defaultAnonOnlyCoversTemp),
		AutoblockTTL:        support.GetEnvDuration("GB_AUTOBLOCK_TTL", defaultAutoblockTTL),
		AutoblockRetroLimit: support.GetEnvInt("GB_AUTOBLOCK_RETRO_LIMIT", defaultAutoblockRetroMax),
		ExemptListURLs:      support.GetEnvList("GB_AUTOBLOCK_EXEMPT_URLS"),
		ExemptListTTL:       support.GetEnvDuration("GB_AUTOBLOCK_EXEMPT_TTL", defaultExemptListTTL),
		ExemptListTimeout:   support.GetEnvDuration("GB_AUTOBLOCK_EXEMPT_TIMEOUT", defaultExemptListTimeout),
	}
	if p.AutoblockRetroLimit < 0 {
		p.AutoblockRetroLimit = 0
	}
	current.Store(p)
	return p
}

// Get returns the cached policy, loading it on first use.
func Get() Policy {
	if v := current.Load(); v != nil {
		return v.(Policy)
	}
	return Load()
}

// Default returns the built-in policy values without touching the
// environment. Intended for tests.
func Default() Policy {
	return Policy{
		LocalWikiID:         "localwiki",
		AnonOnlyCoversTemp:  defaultAnonOnlyCoversTemp,
		AutoblockTTL:        defaultAutoblockTTL,
		AutoblockRetroLimit: defaultAutoblockRetroMax,
		ExemptListTTL:       defaultExemptListTTL,
		ExemptListTimeout:   defaultExemptListTimeout,
	}
}
