package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/lexgraph/internal/timing"
	"github.com/OFFIS-RIT/lexgraph/internal/util"
	"github.com/OFFIS-RIT/lexgraph/pkg/common"
	"github.com/OFFIS-RIT/lexgraph/pkg/logger"
	"github.com/OFFIS-RIT/lexgraph/pkg/store"
)

// Ingestor writes fragments into a graph store, one atomic unit of work per
// fragment, in store order.
type Ingestor struct {
	store store.GraphStore
	vocab common.Vocabulary
}

type NewIngestorParams struct {
	Store      store.GraphStore `validate:"required"`
	Vocabulary common.Vocabulary
}

// IngestFailure names one fragment that could not be ingested.
type IngestFailure struct {
	Index    int    `json:"index"`
	RecordID string `json:"record_id"`
	Err      string `json:"error"`
}

// IngestReport summarises one Ingest. Nodes and Edges count what was
// written; DroppedNodes and DroppedEdges count what FilterFragment removed
// from otherwise ingested fragments.
type IngestReport struct {
	Total        int             `json:"total"`
	Ingested     int             `json:"ingested"`
	Failed       int             `json:"failed"`
	Nodes        int             `json:"nodes"`
	Edges        int             `json:"edges"`
	DroppedNodes int             `json:"dropped_nodes"`
	DroppedEdges int             `json:"dropped_edges"`
	Failures     []IngestFailure `json:"failures,omitempty"`
	Duration     time.Duration   `json:"duration"`
}

func NewIngestor(params NewIngestorParams) (*Ingestor, error) {
	if err := util.ValidateStruct(params); err != nil {
		return nil, fmt.Errorf("invalid ingestor params: %w", err)
	}
	vocab := params.Vocabulary
	if len(vocab.Labels) == 0 && len(vocab.EdgeTypes) == 0 {
		vocab = common.DefaultVocabulary()
	}
	return &Ingestor{store: params.Store, vocab: vocab}, nil
}

// Ingest upserts every fragment. Nodes and edges that FilterFragment rejects
// are logged and left out while the rest of their fragment is still written.
// A fragment left with nothing to write, or whose write fails, is logged,
// counted and skipped. Only context cancellation stops the pass early.
func (i *Ingestor) Ingest(ctx context.Context, frags []common.Fragment) (*IngestReport, error) {
	start := time.Now()
	report := &IngestReport{Total: len(frags)}

	if si, ok := i.store.(store.SchemaInitializer); ok {
		if err := si.EnsureSchema(ctx, i.vocab); err != nil {
			return report, fmt.Errorf("ensure graph schema: %w", err)
		}
	}

	for idx, frag := range frags {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}

		kept, dropped := FilterFragment(frag, i.vocab)
		if dropped != nil {
			logger.Warn("[Ingest] dropped part of fragment", "index", idx, "record", frag.RecordID(), "err", dropped)
		}

		var err error
		if len(kept.Nodes) == 0 && len(kept.Edges) == 0 && dropped != nil {
			err = dropped
		} else {
			err = i.store.UpsertFragment(ctx, kept)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				report.Duration = time.Since(start)
				return report, ctxErr
			}
			report.Failed++
			report.Failures = append(report.Failures, IngestFailure{
				Index:    idx,
				RecordID: frag.RecordID(),
				Err:      err.Error(),
			})
			logger.Warn("[Ingest] fragment skipped", "index", idx, "record", frag.RecordID(), "err", err)
			continue
		}

		report.Ingested++
		report.Nodes += len(kept.Nodes)
		report.Edges += len(kept.Edges)
		report.DroppedNodes += len(frag.Nodes) - len(kept.Nodes)
		report.DroppedEdges += len(frag.Edges) - len(kept.Edges)
		logger.Debug("[Ingest] fragment ingested", "index", idx, "record", frag.RecordID())
	}

	report.Duration = time.Since(start)
	logger.Info("[Ingest] finished",
		"fragments", report.Total,
		"ingested", report.Ingested,
		"failed", report.Failed,
		"dropped_nodes", report.DroppedNodes,
		"dropped_edges", report.DroppedEdges,
		"duration", timing.FormatDuration(report.Duration),
	)
	return report, nil
}

// FilterFragment splits frag into the part that may be written and an error
// describing everything it left out, nil when nothing was dropped.
//
// A node is dropped when it has no id or its label is not in vocab. An edge
// is dropped when an endpoint is missing, its type is not in vocab, or it
// touches a node dropped from the same fragment. Labels and types reach
// query structure on some backends, so nothing outside vocab is written.
func FilterFragment(frag common.Fragment, vocab common.Vocabulary) (common.Fragment, error) {
	kept := common.Fragment{
		SourceRecordID: frag.SourceRecordID,
		Nodes:          make([]common.Node, 0, len(frag.Nodes)),
		Edges:          make([]common.Edge, 0, len(frag.Edges)),
	}

	var errs []error
	keptIDs := make(map[string]struct{}, len(frag.Nodes))
	droppedIDs := make(map[string]struct{})
	for n, node := range frag.Nodes {
		switch {
		case node.ID == "":
			errs = append(errs, fmt.Errorf("%w: node %d has no id", ErrInvalidFragment, n))
		case !vocab.HasLabel(node.Label):
			errs = append(errs, fmt.Errorf("%w: %q on node %q", ErrUnknownLabel, node.Label, node.ID))
			droppedIDs[node.ID] = struct{}{}
		default:
			kept.Nodes = append(kept.Nodes, node)
			keptIDs[node.ID] = struct{}{}
		}
	}
	for id := range keptIDs {
		delete(droppedIDs, id)
	}

	for n, edge := range frag.Edges {
		_, srcDropped := droppedIDs[edge.SourceID]
		_, tgtDropped := droppedIDs[edge.TargetID]
		switch {
		case edge.SourceID == "" || edge.TargetID == "":
			errs = append(errs, fmt.Errorf("%w: edge %d is missing an endpoint", ErrInvalidFragment, n))
		case !vocab.HasEdgeType(edge.Type):
			errs = append(errs, fmt.Errorf("%w: %q on edge %s->%s", ErrUnknownEdgeType, edge.Type, edge.SourceID, edge.TargetID))
		case srcDropped || tgtDropped:
			errs = append(errs, fmt.Errorf("%w: edge %s->%s touches a dropped node", ErrDroppedEndpoint, edge.SourceID, edge.TargetID))
		default:
			kept.Edges = append(kept.Edges, edge)
		}
	}
	return kept, errors.Join(errs...)
}
