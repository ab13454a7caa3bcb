package geoip

import (
	"fmt"
	"net/netip"
	"sync"

	"github.com/oschwald/geoip2-golang/v2"
)

// Database wraps optional MaxMind country and ASN readers used to backfill
// fields the online providers left empty. Both readers may be nil.
type Database struct {
	mu      sync.RWMutex
	country *geoip2.Reader
	asn     *geoip2.Reader
}

// OfflineRecord is what the local databases know about an address
type OfflineRecord struct {
	CountryCode string
	Carrier     string
}

// OpenDatabase opens the databases at the given paths. Empty paths are
// skipped; with both empty the returned Database answers nothing.
func OpenDatabase(countryPath, asnPath string) (*Database, error) {
	db := &Database{}

	if countryPath != "" {
		r, err := geoip2.Open(countryPath)
		if err != nil {
			return nil, fmt.Errorf("open country database: %w", err)
		}
		db.country = r
	}

	if asnPath != "" {
		r, err := geoip2.Open(asnPath)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("open ASN database: %w", err)
		}
		db.asn = r
	}

	return db, nil
}

// Enabled reports whether at least one database is loaded
func (db *Database) Enabled() bool {
	if db == nil {
		return false
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.country != nil || db.asn != nil
}

// Lookup returns the country code and AS organisation for ip
func (db *Database) Lookup(ip string) (OfflineRecord, error) {
	var rec OfflineRecord
	if db == nil {
		return rec, nil
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return rec, fmt.Errorf("parse address: %w", err)
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.country != nil {
		country, err := db.country.Country(addr)
		if err != nil {
			return rec, fmt.Errorf("country lookup: %w", err)
		}
		rec.CountryCode = country.Country.ISOCode
	}

	if db.asn != nil {
		asn, err := db.asn.ASN(addr)
		if err != nil {
			return rec, fmt.Errorf("ASN lookup: %w", err)
		}
		rec.Carrier = asn.AutonomousSystemOrganization
	}

	return rec, nil
}

// Close releases both readers
func (db *Database) Close() error {
	if db == nil {
		return nil
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	var firstErr error
	for _, r := range []*geoip2.Reader{db.country, db.asn} {
		if r == nil {
			continue
		}
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	db.country, db.asn = nil, nil
	return firstErr
}
