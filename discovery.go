package ldapobject

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// ServerInfo describes one directory server candidate.
type ServerInfo struct {
	Host     string
	Port     int
	UseTLS   bool
	Priority int
	Weight   int
	Source   string // "srv", "config", "fallback"
}

// DiscoverServers discovers directory servers for a domain using DNS SRV
// records, preferring _ldaps._tcp over _ldap._tcp. When no SRV records
// exist, the domain itself on the standard ports is returned as a fallback.
func DiscoverServers(ctx context.Context, domain string) ([]*ServerInfo, error) {
	if domain == "" {
		return nil, fmt.Errorf("domain cannot be empty")
	}

	services := []struct {
		name   string
		useTLS bool
	}{
		{"_ldaps._tcp." + domain, true},
		{"_ldap._tcp." + domain, false},
	}

	var servers []*ServerInfo
	for _, service := range services {
		found, err := lookupSRV(ctx, service.name, service.useTLS)
		if err != nil {
			continue
		}
		servers = append(servers, found...)

		// LDAPS servers found: no reason to look further.
		if service.useTLS && len(found) > 0 {
			break
		}
	}

	if len(servers) == 0 {
		return fallbackServers(domain), nil
	}

	sortServersByPriority(servers)
	return servers, nil
}

// lookupSRV performs one SRV record lookup.
func lookupSRV(ctx context.Context, service string, useTLS bool) ([]*ServerInfo, error) {
	_, records, err := net.DefaultResolver.LookupSRV(ctx, "", "", service)
	if err != nil {
		return nil, fmt.Errorf("SRV lookup failed for %s: %w", service, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no SRV records found for %s", service)
	}

	servers := make([]*ServerInfo, 0, len(records))
	for _, srv := range records {
		servers = append(servers, &ServerInfo{
			Host:     strings.TrimSuffix(srv.Target, "."),
			Port:     int(srv.Port),
			UseTLS:   useTLS,
			Priority: int(srv.Priority),
			Weight:   int(srv.Weight),
			Source:   "srv",
		})
	}
	return servers, nil
}

// fallbackServers targets the domain itself on the standard ports.
func fallbackServers(domain string) []*ServerInfo {
	return []*ServerInfo{
		{Host: domain, Port: 636, UseTLS: true, Weight: 100, Source: "fallback"},
		{Host: domain, Port: 389, UseTLS: false, Priority: 1, Weight: 100, Source: "fallback"},
	}
}

// sortServersByPriority orders servers by RFC 2782 priority, heavier weights
// first within the same priority.
func sortServersByPriority(servers []*ServerInfo) {
	sort.Slice(servers, func(i, j int) bool {
		if servers[i].Priority != servers[j].Priority {
			return servers[i].Priority < servers[j].Priority
		}
		return servers[i].Weight > servers[j].Weight
	})
}

// validateServer validates server information.
func validateServer(server *ServerInfo) error {
	if server == nil {
		return fmt.Errorf("server info cannot be nil")
	}
	if server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if strings.ContainsAny(server.Host, "/ ") {
		return fmt.Errorf("invalid characters in host %q", server.Host)
	}
	if server.Port <= 0 || server.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", server.Port)
	}
	return nil
}

// ServerURL converts a ServerInfo to an LDAP URL. IPv6 hosts are bracketed.
func ServerURL(server *ServerInfo) string {
	scheme := "ldap"
	if server.UseTLS {
		scheme = "ldaps"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(server.Host, strconv.Itoa(server.Port)))
}

// ParseServerURL parses an ldap:// or ldaps:// URL into a ServerInfo,
// applying the scheme's default port when none is given. Any path component
// is discarded.
func ParseServerURL(rawURL string) (*ServerInfo, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("URL cannot be empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", rawURL, err)
	}

	var useTLS bool
	switch parsed.Scheme {
	case "ldaps":
		useTLS = true
	case "ldap":
	default:
		return nil, fmt.Errorf("unsupported scheme, must be ldap:// or ldaps://")
	}

	port := 389
	if useTLS {
		port = 636
	}
	if p := parsed.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid port number: %s", p)
		}
	}

	server := &ServerInfo{
		Host:   parsed.Hostname(),
		Port:   port,
		UseTLS: useTLS,
		Weight: 100,
		Source: "config",
	}

	return server, validateServer(server)
}
