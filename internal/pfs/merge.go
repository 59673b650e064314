package pfs

// UnitChanges is the set of writes that brings a document's units in
// line with an incoming file.
type UnitChanges struct {
	// Add holds units new to the document; Index is set.
	Add []*Unit
	// Update holds existing units (by ID) with their new content, index
	// and obsolete flag.
	Update []*Unit
	// Obsolete holds IDs of units to soft-delete.
	Obsolete []int64
	// Conflicts counts units changed on both sides since the baseline.
	Conflicts int
}

// Empty reports whether applying c would change nothing.
func (c *UnitChanges) Empty() bool {
	return len(c.Add) == 0 && len(c.Update) == 0 && len(c.Obsolete) == 0
}

// PlanUpdate computes the changes that apply incoming onto current.
//
// baseline is the revision both sides last agreed on. Database units
// changed after baseline but missing from incoming are kept, and incoming
// units whose database unit was obsoleted after baseline are dropped. A
// unit whose fields differ on both sides is a conflict when its database
// revision is newer than baseline; pootleWins then keeps the database
// value, otherwise the incoming value wins.
func PlanUpdate(current []*Unit, incoming []*Unit, baseline int64, pootleWins bool) *UnitChanges {
	byID := make(map[string]*Unit, len(current))
	var active []*Unit
	var maxRevision int64
	for _, u := range current {
		byID[u.UnitID] = u
		if u.Revision > maxRevision {
			maxRevision = u.Revision
		}
		if !u.Obsolete {
			active = append(active, u)
		}
	}

	// Duplicate ids in the file keep their first occurrence.
	inFile := make(map[string]*Unit, len(incoming))
	unique := make([]*Unit, 0, len(incoming))
	for _, u := range incoming {
		if _, dup := inFile[u.UnitID]; dup {
			continue
		}
		inFile[u.UnitID] = u
		unique = append(unique, u)
	}
	incoming = unique

	var order []*Unit
	if baseline >= maxRevision {
		order = append(order, incoming...)
	} else {
		for _, u := range incoming {
			db, ok := byID[u.UnitID]
			if ok && db.Obsolete && db.Revision > baseline {
				continue
			}
			order = append(order, u)
		}
		order = keepUpdated(order, active, inFile, baseline)
	}

	changes := &UnitChanges{}
	kept := make(map[string]bool, len(order))
	for index, u := range order {
		kept[u.UnitID] = true
		db, ok := byID[u.UnitID]
		if !ok {
			add := *u
			add.Index = index
			add.ID = 0
			changes.Add = append(changes.Add, &add)
			continue
		}

		next := *db
		next.Index = index
		next.Obsolete = false
		if u != db && !db.SameContent(u) {
			conflict := !db.Obsolete && db.Revision > baseline
			if conflict {
				changes.Conflicts++
			}
			if !conflict || !pootleWins {
				next.Source = u.Source
				next.Target = u.Target
				next.Comment = u.Comment
			}
		}
		if next.Index != db.Index || next.Obsolete != db.Obsolete || !next.SameContent(db) {
			changes.Update = append(changes.Update, &next)
		}
	}

	for _, u := range active {
		if !kept[u.UnitID] {
			changes.Obsolete = append(changes.Obsolete, u.ID)
		}
	}
	return changes
}

// keepUpdated inserts database units changed after baseline and missing
// from the file into order, each right after its nearest database
// predecessor already present.
func keepUpdated(order []*Unit, active []*Unit, inFile map[string]*Unit, baseline int64) []*Unit {
	for i, u := range active {
		if u.Revision <= baseline || inFile[u.UnitID] != nil {
			continue
		}
		pos := 0
		for j := i - 1; j >= 0; j-- {
			if k := indexOf(order, active[j].UnitID); k >= 0 {
				pos = k + 1
				break
			}
		}
		order = append(order, nil)
		copy(order[pos+1:], order[pos:])
		order[pos] = u
	}
	return order
}

func indexOf(units []*Unit, unitID string) int {
	for i, u := range units {
		if u.UnitID == unitID {
			return i
		}
	}
	return -1
}
