package merge

import (
	"github.com/openmined/syftvault/internal/model"
)

// MergeMetadata resolves each field of a file on its own axis.
//
//   - name: whichever side renamed wins, remote wins if both did
//   - parent: whichever side moved wins, remote wins if both did
//   - deleted: deleted anywhere means deleted
//   - versions: always the server's
//
// Names are compared by hmac only.
func MergeMetadata(base, local, remote *model.FileMetadata) *model.FileMetadata {
	merged := remote.Clone()

	localRenamed := !local.Name.Equal(base.Name)
	remoteRenamed := !remote.Name.Equal(base.Name)
	if localRenamed && !remoteRenamed {
		merged.Name = local.Clone().Name
	}

	localMoved := local.Parent != base.Parent
	remoteMoved := remote.Parent != base.Parent
	if localMoved && !remoteMoved {
		merged.Parent = local.Parent
		merged.AccessKey = append([]byte(nil), local.AccessKey...)
	}

	merged.Deleted = base.Deleted || local.Deleted || remote.Deleted
	merged.MetadataVersion = remote.MetadataVersion
	merged.ContentVersion = remote.ContentVersion
	return merged
}
