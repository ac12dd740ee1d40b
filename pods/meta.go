// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package pods

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"go.uber.org/zap"

	"storj.io/webpods/podbase"
	"storj.io/webpods/treecache"
)

// checkMetaAppend validates writes that carry meta semantics before they
// reach storage. Meta records live under system streams, so only the pod
// owner gets this far.
func checkMetaAppend(streamPath, name, content string) error {
	switch streamPath + "/" + name {
	case podbase.OwnerRecordPath:
		return checkOwnerRecord(content)
	case podbase.RoutingRecordPath:
		return checkRoutingRecord(content)
	case podbase.DomainsRecordPath:
		return checkDomainsRecord(content)
	}
	if streamPath == podbase.SchemaStreamName ||
		strings.HasPrefix(streamPath, podbase.SchemaStreamName+"/") {
		_, err := parseSchemaRecord(content)
		return err
	}
	return nil
}

// ownerRecord is the JSON body of the owner meta record.
type ownerRecord struct {
	Owner string `json:"owner"`
}

func checkOwnerRecord(content string) error {
	var payload ownerRecord
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return ErrSchemaViolation.New("owner record must be JSON: %v", err)
	}
	if payload.Owner == "" {
		return ErrSchemaViolation.New("owner record needs a non-empty owner")
	}
	return nil
}

// checkRoutingRecord requires a JSON object mapping URL paths to record
// paths, e.g. {"/": "pages/home"}.
func checkRoutingRecord(content string) error {
	var routes map[string]string
	if err := json.Unmarshal([]byte(content), &routes); err != nil {
		return ErrSchemaViolation.New("routing record must map URL paths to record paths: %v", err)
	}
	for urlPath, target := range routes {
		if !strings.HasPrefix(urlPath, "/") {
			return ErrSchemaViolation.New("route %q must start with /", urlPath)
		}
		if len(strings.Split(strings.Trim(target, "/"), "/")) < 2 {
			return ErrSchemaViolation.New("route target %q must name a stream and a record", target)
		}
	}
	return nil
}

// domainRecord is the JSON body of one domains meta record version.
type domainRecord struct {
	Domain string `json:"domain"`
	Remove bool   `json:"remove,omitempty"`
}

func checkDomainsRecord(content string) error {
	var payload domainRecord
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return ErrSchemaViolation.New("domains record must be JSON: %v", err)
	}
	domain := strings.ToLower(strings.TrimSpace(payload.Domain))
	if domain == "" {
		return ErrSchemaViolation.New("domains record needs a domain")
	}
	if strings.ContainsAny(domain, " /:") {
		return ErrSchemaViolation.New("domain %q is not a host name", payload.Domain)
	}
	return nil
}

// FoldDomains replays the version history of the domains meta record and
// returns the currently registered set, sorted. A version with remove set
// unregisters its domain; a deletion marker for the record voids everything
// before it; unparseable versions are skipped.
func FoldDomains(records []podbase.Record) []string {
	set := make(map[string]struct{})
	for _, record := range records {
		if original, ok := podbase.ParseTombstoneName(record.Name); ok {
			if original == podbase.DomainsRecordName {
				set = make(map[string]struct{})
			}
			continue
		}
		if record.Name != podbase.DomainsRecordName {
			continue
		}
		var payload domainRecord
		if err := json.Unmarshal([]byte(record.Content), &payload); err != nil {
			continue
		}
		domain := strings.ToLower(strings.TrimSpace(payload.Domain))
		if domain == "" {
			continue
		}
		if payload.Remove {
			delete(set, domain)
			continue
		}
		set[domain] = struct{}{}
	}
	domains := make([]string, 0, len(set))
	for domain := range set {
		domains = append(domains, domain)
	}
	sort.Strings(domains)
	return domains
}

// syncMetaRecord re-derives the projections hanging off a meta record after
// its history changes. The record itself is already durable, so failures
// here are logged and repaired by the next write rather than surfaced to
// the client.
func (service *Service) syncMetaRecord(ctx context.Context, pod podbase.PodName, streamPath, name string) {
	recordPath := streamPath + "/" + name
	switch {
	case recordPath == podbase.DomainsRecordPath:
		if err := service.rebuildDomains(ctx, pod); err != nil {
			service.log.Error("custom domain projection failed",
				zap.String("pod", string(pod)),
				zap.Error(err))
		}
	case streamPath == podbase.SchemaStreamName ||
		strings.HasPrefix(streamPath, podbase.SchemaStreamName+"/"):
		target := strings.TrimPrefix(recordPath, podbase.SchemaStreamName+"/")
		if err := service.syncSchemaFlag(ctx, pod, target); err != nil {
			service.log.Error("schema flag update failed",
				zap.String("pod", string(pod)),
				zap.String("target", target),
				zap.Error(err))
		}
	}
}

// rebuildDomains replays the domains record history into the custom domain
// table.
func (service *Service) rebuildDomains(ctx context.Context, pod podbase.PodName) (err error) {
	defer mon.Task()(&ctx)(&err)

	stream, err := service.db.GetStreamByPath(ctx, podbase.GetStreamByPath{
		Pod:  pod,
		Path: podbase.ConfigStreamName,
	})
	if err != nil {
		return err
	}

	var records []podbase.Record
	var after *int64
	for {
		page, err := service.db.ListRecords(ctx, podbase.ListRecords{
			StreamID: stream.ID,
			Limit:    podbase.MaxListLimit,
			After:    after,
		})
		if err != nil {
			return err
		}
		records = append(records, page.Records...)
		if !page.HasMore || len(page.Records) == 0 {
			break
		}
		last := page.Records[len(page.Records)-1].Index
		after = &last
	}

	return service.db.SetCustomDomains(ctx, podbase.SetCustomDomains{
		Pod:     pod,
		Domains: FoldDomains(records),
	})
}

// ResolveRoute consults the pod's routing map for a request path that names
// no stream or record. The empty return means no route matched; the target
// still goes through the regular permission checks.
func (service *Service) ResolveRoute(ctx context.Context, pod podbase.PodName, requestPath string) (target string, err error) {
	defer mon.Task()(&ctx)(&err)

	stream, err := service.db.GetStreamByPath(ctx, podbase.GetStreamByPath{
		Pod:  pod,
		Path: podbase.ConfigStreamName,
	})
	if err != nil {
		if podbase.ErrStreamNotFound.Has(err) {
			return "", nil
		}
		return "", err
	}

	key := treecache.RecordKey(string(pod), podbase.ConfigStreamName, podbase.RoutingRecordName)
	record, cached := podbase.Record{}, false
	if value, ok := service.cache.SingleRecords.Get(key); ok {
		record, cached = value.(podbase.Record)
	}
	if !cached {
		record, err = service.db.GetRecordByName(ctx, podbase.GetRecordByName{
			StreamID: stream.ID,
			Name:     podbase.RoutingRecordName,
		})
		if err != nil {
			if podbase.ErrRecordNotFound.Has(err) || podbase.ErrRecordDeleted.Has(err) {
				return "", nil
			}
			return "", err
		}
		service.cache.SingleRecords.Set(key, record)
	}

	var routes map[string]string
	if err := json.Unmarshal([]byte(record.Content), &routes); err != nil {
		service.log.Warn("malformed routing record",
			zap.String("pod", string(pod)),
			zap.Error(err))
		return "", nil
	}
	return strings.Trim(routes[requestPath], "/"), nil
}
