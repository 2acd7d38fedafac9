package runner

import (
	"context"
	"fmt"

	"b3-dataflow/internal/errors"
	"b3-dataflow/internal/transform"
)

// DefaultETLJob is the job name the trigger starts for new raw objects.
const DefaultETLJob = "b3-etl-job"

// PartitionTransformer is the part of the transformer the ETL job uses.
type PartitionTransformer interface {
	TransformPartition(ctx context.Context, rawKey, refinedKey string) (transform.Result, error)
}

// ETLHandler derives the raw partition named by rawPath into refinedPath.
// rawBucket is informational; the transformer reads its configured store.
func ETLHandler(t PartitionTransformer) Handler {
	return func(ctx context.Context, args map[string]string) error {
		raw, refined := args[ArgRawPath], args[ArgRefinedPath]
		if raw == "" || refined == "" {
			return fmt.Errorf("%s and %s are required: %w", ArgRawPath, ArgRefinedPath, errors.ErrInvalidPartition)
		}
		_, err := t.TransformPartition(ctx, raw, refined)
		return err
	}
}
