// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package pods

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"storj.io/webpods/podbase"
)

// Schema enforcement modes.
const (
	SchemaModeStrict     = "strict"
	SchemaModePermissive = "permissive"
)

// SchemaRecord is the JSON body of a schema meta record. The record for
// target stream T lives at `.schema/T`; its latest version governs appends
// to T.
type SchemaRecord struct {
	Mode     string          `json:"mode"`
	Schema   json.RawMessage `json:"schema"`
	Disabled bool            `json:"disabled,omitempty"`
}

// parseSchemaRecord validates a schema record body: the mode must be known
// and the schema document must compile.
func parseSchemaRecord(content string) (SchemaRecord, error) {
	var record SchemaRecord
	if err := json.Unmarshal([]byte(content), &record); err != nil {
		return SchemaRecord{}, ErrSchemaViolation.New("schema record must be JSON: %v", err)
	}
	if record.Disabled {
		return record, nil
	}
	if record.Mode != SchemaModeStrict && record.Mode != SchemaModePermissive {
		return SchemaRecord{}, ErrSchemaViolation.New("schema mode %q must be %q or %q",
			record.Mode, SchemaModeStrict, SchemaModePermissive)
	}
	if len(record.Schema) == 0 {
		return SchemaRecord{}, ErrSchemaViolation.New("schema record needs a schema document")
	}
	if _, err := jsonschema.CompileString("schema.json", string(record.Schema)); err != nil {
		return SchemaRecord{}, ErrSchemaViolation.New("schema does not compile: %v", err)
	}
	return record, nil
}

// loadSchemaRecord fetches the latest schema record for the target path.
func (service *Service) loadSchemaRecord(ctx context.Context, pod podbase.PodName, targetPath string) (_ podbase.Record, err error) {
	defer mon.Task()(&ctx)(&err)

	schemaPath := podbase.SchemaStreamName + "/" + targetPath
	i := strings.LastIndex(schemaPath, "/")
	streamPath, name := schemaPath[:i], schemaPath[i+1:]

	stream, err := service.db.GetStreamByPath(ctx, podbase.GetStreamByPath{
		Pod:  pod,
		Path: streamPath,
	})
	if err != nil {
		return podbase.Record{}, err
	}
	return service.db.GetRecordByName(ctx, podbase.GetRecordByName{
		StreamID: stream.ID,
		Name:     name,
	})
}

// enforceSchema validates record content against the stream's current
// schema. Strict mode rejects failures; permissive mode logs and accepts.
func (service *Service) enforceSchema(ctx context.Context, pod podbase.PodName, streamPath, content, contentType string) (err error) {
	defer mon.Task()(&ctx)(&err)

	record, err := service.loadSchemaRecord(ctx, pod, streamPath)
	if err != nil {
		if podbase.ErrStreamNotFound.Has(err) || podbase.ErrRecordNotFound.Has(err) || podbase.ErrRecordDeleted.Has(err) {
			// The enforcement flag outlived the schema record.
			return nil
		}
		return err
	}
	parsed, err := parseSchemaRecord(record.Content)
	if err != nil || parsed.Disabled {
		return nil
	}

	verr := service.validate(ctx, record.Hash, string(parsed.Schema), content, contentType)
	if verr == nil {
		return nil
	}
	if parsed.Mode == SchemaModePermissive {
		service.log.Warn("permissive schema validation failed",
			zap.String("pod", string(pod)),
			zap.String("stream", streamPath),
			zap.Error(verr))
		return nil
	}
	return verr
}

// validate compiles the schema, reusing compilations keyed by the schema
// record's hash, and checks the content against it. Only JSON content can
// validate.
func (service *Service) validate(ctx context.Context, schemaHash, schemaDoc, content, contentType string) error {
	if mediaType(contentType) != "application/json" {
		return ErrSchemaViolation.New("schema enforced streams accept application/json records, got %q", contentType)
	}

	schema, err := service.schemas.Get(ctx, schemaHash, func() (*jsonschema.Schema, error) {
		return jsonschema.CompileString("schema.json", schemaDoc)
	})
	if err != nil {
		return ErrSchemaViolation.New("schema does not compile: %v", err)
	}

	var instance interface{}
	if err := json.Unmarshal([]byte(content), &instance); err != nil {
		return ErrSchemaViolation.New("record content must be JSON: %v", err)
	}
	if err := schema.Validate(instance); err != nil {
		return ErrSchemaViolation.New("record content fails the stream schema: %v", err)
	}
	return nil
}

// mediaType strips content type parameters like charset.
func mediaType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.TrimSpace(contentType)
}

// syncSchemaFlag points the target stream's enforcement flag at the current
// state of its schema record. Targets that do not exist yet are skipped;
// they pick the flag up when the schema record is next rewritten.
func (service *Service) syncSchemaFlag(ctx context.Context, pod podbase.PodName, targetPath string) (err error) {
	defer mon.Task()(&ctx)(&err)

	target, err := service.db.GetStreamByPath(ctx, podbase.GetStreamByPath{
		Pod:  pod,
		Path: targetPath,
	})
	if err != nil {
		if podbase.ErrStreamNotFound.Has(err) {
			return nil
		}
		return err
	}

	enabled := false
	record, err := service.loadSchemaRecord(ctx, pod, targetPath)
	switch {
	case err == nil:
		parsed, perr := parseSchemaRecord(record.Content)
		enabled = perr == nil && !parsed.Disabled
	case podbase.ErrStreamNotFound.Has(err), podbase.ErrRecordNotFound.Has(err), podbase.ErrRecordDeleted.Has(err):
	default:
		return err
	}
	return service.db.SetStreamSchema(ctx, podbase.SetStreamSchema{
		StreamID:  target.ID,
		HasSchema: enabled,
	})
}
