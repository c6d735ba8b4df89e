package sync

import (
	"fmt"
	"log/slog"

	"github.com/openmined/syftvault/internal/model"
)

const nameConflictFormat = "%s-NAME-CONFLICT-%s"

// renameLocalConflicts moves local siblings out of the way of an incoming
// file that takes their name. The renames are tracked and pushed later.
func (se *SyncEngine) renameLocalConflicts(incoming *model.FileMetadata) error {
	if incoming.IsRoot() {
		return nil
	}

	siblings, err := se.files.Children(incoming.Parent)
	if err != nil {
		return err
	}

	for _, sibling := range siblings {
		if sibling.ID == incoming.ID || !sibling.Name.Equal(incoming.Name) {
			continue
		}

		name, err := se.crypto.DecryptName(sibling.Name)
		if err != nil {
			return fmt.Errorf("decrypt sibling name: %w", err)
		}
		renamed := fmt.Sprintf(nameConflictFormat, name, sibling.ID)
		if err := se.files.Rename(sibling.ID, renamed); err != nil {
			return fmt.Errorf("rename conflicting sibling %s: %w", sibling.ID, err)
		}
		slog.Info("sync renamed local name conflict", "id", sibling.ID, "incoming", incoming.ID, "name", renamed)
		se.status.SetConflicted(sibling.ID)
	}
	return nil
}
