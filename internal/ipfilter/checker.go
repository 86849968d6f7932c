package ipfilter

import (
	"bufio"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	datacenterRangesURL = "https://raw.githubusercontent.com/jhassine/server-ip-addresses/master/data/datacenters.txt"
	torExitNodeURL      = "https://check.torproject.org/torbulkexitlist"

	refreshInterval = 24 * time.Hour
	fetchTimeout    = 30 * time.Second
)

// Well-known CDN/hosting ranges kept as a static floor so datacenter
// marking works even when the remote lists are unreachable.
var seedCIDR = []string{
	"23.32.0.0/11", "23.192.0.0/11", "2.16.0.0/13", "104.64.0.0/10",
	"184.24.0.0/13", "95.100.0.0/15", "62.210.0.0/16", "195.154.0.0/16",
	"163.172.0.0/16", "51.15.0.0/16", "51.158.0.0/15",
}

// Checker maintains in-memory datacenter CIDR ranges and Tor exit node
// IPs. Visits from these addresses are synthetic traffic (monitors,
// scrapers, proxies) and get marked as bots in the click log. All lookups
// are thread-safe; lists refresh periodically in the background.
type Checker struct {
	mu         sync.RWMutex
	ranges     []*net.IPNet
	blockedIPs map[string]bool
	stop       chan struct{}
	done       chan struct{}
}

// NewChecker starts a background goroutine that loads the seed ranges
// immediately, then fetches remote lists and refreshes them every 24h.
func NewChecker() *Checker {
	c := &Checker{
		blockedIPs: make(map[string]bool),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	c.ranges = parseCIDRList(seedCIDR)
	go c.run()
	return c
}

// IsDatacenter returns true if ip belongs to a known datacenter range or
// is a Tor exit node. Nil-safe: a nil Checker matches nothing.
func (c *Checker) IsDatacenter(ip string) bool {
	if c == nil {
		return false
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.blockedIPs[ip] {
		return true
	}
	for _, n := range c.ranges {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

// Shutdown stops the background refresh and waits for it to finish.
func (c *Checker) Shutdown() {
	if c == nil {
		return
	}
	close(c.stop)
	<-c.done
}

func (c *Checker) run() {
	defer close(c.done)
	c.refresh()

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.refresh()
		case <-c.stop:
			return
		}
	}
}

func (c *Checker) refresh() {
	newRanges := parseCIDRList(seedCIDR)
	newBlocked := make(map[string]bool)

	if ranges, err := fetchCIDRs(datacenterRangesURL); err != nil {
		log.Printf("ipfilter: datacenter list: %v", err)
	} else {
		newRanges = append(newRanges, ranges...)
	}

	if ips, err := fetchIPList(torExitNodeURL); err != nil {
		log.Printf("ipfilter: tor exit list: %v", err)
	} else {
		for _, ip := range ips {
			newBlocked[ip] = true
		}
	}

	c.mu.Lock()
	c.ranges = newRanges
	if len(newBlocked) > 0 {
		c.blockedIPs = newBlocked
	}
	c.mu.Unlock()

	log.Printf("ipfilter: loaded %d CIDR ranges, %d exit node IPs", len(newRanges), len(newBlocked))
}

func fetchCIDRs(url string) ([]*net.IPNet, error) {
	resp, err := httpGet(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return parseIPRanges(resp.Body), nil
}

func fetchIPList(url string) ([]string, error) {
	resp, err := httpGet(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var ips []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if net.ParseIP(line) != nil {
			ips = append(ips, line)
		}
	}
	return ips, scanner.Err()
}

func httpGet(url string) (*http.Response, error) {
	client := &http.Client{Timeout: fetchTimeout}
	return client.Get(url)
}

func parseIPRanges(r io.Reader) []*net.IPNet {
	var nets []*net.IPNet
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		_, ipNet, err := net.ParseCIDR(line)
		if err != nil {
			continue
		}
		nets = append(nets, ipNet)
	}
	return nets
}

func parseCIDRList(cidrs []string) []*net.IPNet {
	return parseIPRanges(strings.NewReader(strings.Join(cidrs, "\n")))
}
