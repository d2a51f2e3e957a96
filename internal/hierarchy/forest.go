package hierarchy

import (
	"fmt"
	"sort"

	"docarchive/internal/domain"
	"docarchive/internal/models"
)

// BuildForest assembles the rows of one scope into a forest. Nodes whose
// parent is null or absent from rows become roots. Roots and every child
// list are ordered by ascending id. counts supplies current_files per folder.
func BuildForest(rows []models.StorageLocation, counts map[int64]int) []*models.TreeNode {
	sorted := make([]models.StorageLocation, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	byID := make(map[int64]*models.TreeNode, len(sorted))
	for _, row := range sorted {
		byID[row.ID] = &models.TreeNode{
			ID:             row.ID,
			UnitType:       row.UnitType,
			UnitName:       row.UnitName,
			ParentID:       row.ParentID,
			FullPath:       row.FullPath,
			FolderCapacity: row.FolderCapacity,
			CurrentFiles:   counts[row.ID],
			Children:       []*models.TreeNode{},
		}
	}

	roots := make([]*models.TreeNode, 0)
	for _, row := range sorted {
		node := byID[row.ID]
		if row.ParentID != nil {
			if parent, ok := byID[*row.ParentID]; ok && parent != node {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}

// ResolveAncestry orders the ancestry of nodeID root first, using rows that
// were fetched in one batch. A parent id with no matching row is an
// integrity violation.
func ResolveAncestry(rows []models.StorageLocation, nodeID int64) ([]models.StorageLocation, error) {
	byID := make(map[int64]models.StorageLocation, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	current, ok := byID[nodeID]
	if !ok {
		return nil, domain.NotFound("storage location", nodeID)
	}

	var reversed []models.StorageLocation
	seen := make(map[int64]bool, len(rows))
	for {
		if seen[current.ID] {
			return nil, domain.Integrity("storage location %d: ancestry cycle detected", current.ID)
		}
		seen[current.ID] = true
		reversed = append(reversed, current)
		if current.ParentID == nil {
			break
		}
		parent, ok := byID[*current.ParentID]
		if !ok {
			return nil, domain.Integrity("storage location %d references missing parent %d", current.ID, *current.ParentID)
		}
		current = parent
	}

	out := make([]models.StorageLocation, len(reversed))
	for i, loc := range reversed {
		out[len(reversed)-1-i] = loc
	}
	return out, nil
}

// FindIntegrityIssues checks every row of a scope against the containment
// chain and the scope rule.
func FindIntegrityIssues(rows []models.StorageLocation) []models.IntegrityIssue {
	byID := make(map[int64]models.StorageLocation, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	var issues []models.IntegrityIssue
	for _, row := range rows {
		parentType := NoParent
		if row.ParentID != nil {
			parent, ok := byID[*row.ParentID]
			if !ok {
				issues = append(issues, models.IntegrityIssue{
					StorageLocationID: row.ID,
					Problem:           fmt.Sprintf("parent %d is missing", *row.ParentID),
				})
				continue
			}
			if !parent.Scope().Contains(&row) {
				issues = append(issues, models.IntegrityIssue{
					StorageLocationID: row.ID,
					Problem:           fmt.Sprintf("parent %d belongs to a different scope", parent.ID),
				})
			}
			parentType = parent.UnitType
		}
		if err := CheckContainment(parentType, row.UnitType); err != nil {
			issues = append(issues, models.IntegrityIssue{StorageLocationID: row.ID, Problem: err.Error()})
		}
		isFolder := row.UnitType == models.UnitTypeFolder
		hasCapacity := row.FolderCapacity != nil && *row.FolderCapacity > 0
		if isFolder != hasCapacity {
			issues = append(issues, models.IntegrityIssue{
				StorageLocationID: row.ID,
				Problem:           "folder_capacity must be positive exactly for folders",
			})
		}
	}
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].StorageLocationID < issues[j].StorageLocationID })
	return issues
}
