package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/openmined/syftvault/internal/api"
	"github.com/openmined/syftvault/internal/model"
)

// CalculateWork compares the server's updates since the last checkpoint and
// the pending local changes with the replica. Server changes come first in
// ascending metadata version, local changes follow with creations first and
// deletions last, otherwise in the order they were made.
func (se *SyncEngine) CalculateWork(ctx context.Context) (*model.WorkCalculated, error) {
	lastSynced, err := se.store.GetLastSynced()
	if err != nil {
		return nil, err
	}

	updates, err := se.server.GetUpdates(ctx, &api.GetUpdatesRequest{SinceMetadataVersion: lastSynced})
	if err != nil {
		return nil, fmt.Errorf("get updates: %w", err)
	}

	work := &model.WorkCalculated{MostRecentUpdateFromServer: lastSynced}
	serverUnits := make([]*model.WorkUnit, 0, len(updates.Files))
	for _, remote := range updates.Files {
		work.MostRecentUpdateFromServer = max(work.MostRecentUpdateFromServer, remote.MetadataVersion)

		known, err := se.store.Current(remote.ID)
		if err != nil {
			return nil, err
		}
		switch {
		case known == nil && remote.Deleted:
			// never seen and already gone
		case known == nil, known.MetadataVersion != remote.MetadataVersion:
			serverUnits = append(serverUnits, model.NewServerChangeUnit(remote))
		}
	}
	sort.SliceStable(serverUnits, func(i, j int) bool {
		return serverUnits[i].Metadata.MetadataVersion < serverUnits[j].Metadata.MetadataVersion
	})

	changes, err := se.store.GetPendingLocalChanges()
	if err != nil {
		return nil, err
	}
	// creates go first so moves can target new folders, deletes go last so a
	// folder is not removed on the server before its children move out
	sort.SliceStable(changes, func(i, j int) bool {
		return localChangeRank(changes[i]) < localChangeRank(changes[j])
	})

	work.WorkUnits = append(work.WorkUnits, serverUnits...)
	for _, change := range changes {
		meta, err := se.store.Current(change.ID)
		if err != nil {
			return nil, err
		}
		if meta == nil {
			slog.Warn("sync local change without metadata", "id", change.ID)
			continue
		}
		work.WorkUnits = append(work.WorkUnits, model.NewLocalChangeUnit(meta))
	}

	return work, nil
}

func localChangeRank(change *model.LocalChange) int {
	switch {
	case change.New:
		return 0
	case change.Deleted:
		return 2
	default:
		return 1
	}
}

// DescribeUnit renders unit for progress output. Names that cannot be
// decrypted are reported by id only.
func (se *SyncEngine) DescribeUnit(unit *model.WorkUnit) model.ClientWorkUnit {
	desc := model.ClientWorkUnit{
		ID:       unit.ID(),
		FileType: unit.Metadata.FileType,
	}

	name, err := se.crypto.DecryptName(unit.Metadata.Name)
	switch {
	case unit.Kind == model.WorkUnitLocalChange:
		desc.Kind = model.ClientWorkUnitLocal
	case err != nil:
		desc.Kind = model.ClientWorkUnitServerUnknownName
		return desc
	default:
		desc.Kind = model.ClientWorkUnitServer
	}
	if err == nil {
		desc.Name = name
	}
	return desc
}
