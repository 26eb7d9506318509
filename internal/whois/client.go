// ABOUTME: WHOIS lookups for IP addresses and domains with reverse DNS
// ABOUTME: Raw protocol client behind a cache and a circuit breaker

package whois

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"

	"github.com/needful-apps/Gunter/internal/observability"
)

// Data is the response for one WHOIS lookup.
type Data struct {
	// Target of the query (IP or domain).
	Target string `json:"target"`

	// LookupTimestamp is when the query was answered.
	LookupTimestamp time.Time `json:"lookup_timestamp"`

	// IPWhois carries raw registry output for IP targets.
	IPWhois *IPWhois `json:"ip_whois,omitempty"`

	// DomainWhois carries parsed registrar data for domain targets.
	DomainWhois *DomainWhois `json:"domain_whois,omitempty"`

	// ReverseDNS is the PTR name for IP targets, when resolvable.
	ReverseDNS string `json:"reverse_dns,omitempty"`

	// Error describes a failed upstream lookup. The endpoint still
	// returns 200 with this field set.
	Error string `json:"error,omitempty"`
}

// IPWhois holds the raw WHOIS text for an IP target.
type IPWhois struct {
	Raw string `json:"raw"`
}

// DomainWhois holds parsed WHOIS fields for a domain target.
type DomainWhois struct {
	Registrar      string   `json:"registrar,omitempty"`
	CreatedDate    string   `json:"created_date,omitempty"`
	UpdatedDate    string   `json:"updated_date,omitempty"`
	ExpirationDate string   `json:"expiration_date,omitempty"`
	NameServers    []string `json:"name_servers,omitempty"`
	Status         []string `json:"status,omitempty"`
	Raw            string   `json:"raw"`
}

// ServiceConfig configures the WHOIS service.
type ServiceConfig struct {
	// Timeout bounds a single upstream WHOIS query.
	Timeout time.Duration

	// Logger for structured logging.
	Logger *slog.Logger

	// Metrics records lookup counters. Optional.
	Metrics *observability.Metrics
}

// Service answers WHOIS queries. Responses are cached when a cache is
// attached; upstream calls run through a circuit breaker so a dead
// registry does not stall every request.
type Service struct {
	client  *whois.Client
	cache   *Cache
	breaker *breaker
	logger  *slog.Logger
	metrics *observability.Metrics

	// now is swappable for tests.
	now func() time.Time
}

// NewService creates a WHOIS service. The cache may be nil.
func NewService(cfg ServiceConfig, cache *Cache) *Service {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := whois.NewClient()
	client.SetTimeout(cfg.Timeout)

	return &Service{
		client:  client,
		cache:   cache,
		breaker: newBreaker(breakerConfig{}),
		logger:  logger.With(slog.String("component", "whois")),
		metrics: cfg.Metrics,
		now:     time.Now,
	}
}

// IsIP reports whether the target parses as an IP address.
func IsIP(target string) bool {
	_, err := netip.ParseAddr(target)
	return err == nil
}

// Lookup answers a WHOIS query for an IP or domain target. Upstream
// failures are reported inside Data, not as an error; the error return
// covers cache plumbing only.
func (s *Service) Lookup(ctx context.Context, target string) (*Data, error) {
	target = strings.ToLower(strings.TrimSpace(target))

	if s.cache != nil {
		if cached, ok, err := s.cache.Get(ctx, target); err == nil && ok {
			if s.metrics != nil {
				s.metrics.RecordWhoisLookup(true)
			}
			return cached, nil
		}
	}
	if s.metrics != nil {
		s.metrics.RecordWhoisLookup(false)
	}

	data := &Data{
		Target:          target,
		LookupTimestamp: s.now().UTC(),
	}

	if IsIP(target) {
		s.lookupIP(ctx, target, data)
	} else {
		s.lookupDomain(ctx, target, data)
	}

	// Only successful lookups are cached; failures retry on the next
	// request.
	if s.cache != nil && data.Error == "" {
		if err := s.cache.Put(ctx, target, data); err != nil {
			s.logger.Warn("caching whois response", slog.String("target", target), slog.String("error", err.Error()))
		}
	}

	return data, nil
}

// lookupIP fills in raw registry output and reverse DNS for an IP.
func (s *Service) lookupIP(ctx context.Context, ip string, data *Data) {
	raw, err := s.query(ctx, ip)
	if err != nil {
		s.logger.Warn("ip whois lookup failed", slog.String("target", ip), slog.String("error", err.Error()))
		data.Error = fmt.Sprintf("IP WHOIS lookup failed: %v", err)
	} else {
		data.IPWhois = &IPWhois{Raw: raw}
	}

	if name := reverseDNS(ctx, ip); name != "" {
		data.ReverseDNS = name
	}
}

// lookupDomain fills in parsed registrar data for a domain.
func (s *Service) lookupDomain(ctx context.Context, domain string, data *Data) {
	raw, err := s.query(ctx, domain)
	if err != nil {
		s.logger.Warn("domain whois lookup failed", slog.String("target", domain), slog.String("error", err.Error()))
		data.Error = fmt.Sprintf("domain WHOIS lookup failed: %v", err)
		return
	}

	dw := &DomainWhois{Raw: raw}
	if parsed, err := whoisparser.Parse(raw); err == nil {
		if parsed.Registrar != nil {
			dw.Registrar = parsed.Registrar.Name
		}
		if parsed.Domain != nil {
			dw.CreatedDate = parsed.Domain.CreatedDate
			dw.UpdatedDate = parsed.Domain.UpdatedDate
			dw.ExpirationDate = parsed.Domain.ExpirationDate
			dw.NameServers = parsed.Domain.NameServers
			dw.Status = parsed.Domain.Status
		}
	}
	data.DomainWhois = dw
}

// query runs one upstream WHOIS call through the circuit breaker.
func (s *Service) query(ctx context.Context, target string) (string, error) {
	var raw string
	err := s.breaker.execute(ctx, func(context.Context) error {
		var err error
		raw, err = s.client.Whois(target)
		return err
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("no WHOIS data found")
	}
	return raw, nil
}

// reverseDNS resolves the PTR record for an IP, returning "" on any
// failure.
func reverseDNS(ctx context.Context, ip string) string {
	names, err := net.DefaultResolver.LookupAddr(ctx, ip)
	if err != nil || len(names) == 0 {
		return ""
	}
	return strings.TrimSuffix(names[0], ".")
}
