package graph

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// declKey groups raw declarations that denote one logical entity.
type declKey struct {
	kind     Kind
	name     string
	implicit bool
	loc      Location
}

// refKey de-duplicates references recorded more than once (a file indexed per module).
type refKey struct {
	owner     DeclID
	parentRef RefID
	usr       string
	loc       Location
	related   bool
	root      bool
}

// FoldedExtension remembers an extension node removed by folding.
type FoldedExtension struct {
	Kind          Kind             `json:"kind"`
	Usrs          []string         `json:"usrs"`
	Location      Location         `json:"location"`
	Accessibility Accessibility    `json:"accessibility"`
	Extended      DeclID           `json:"extended"`
	Commands      []CommentCommand `json:"commands,omitempty"`
	// Suggested is set when the written accessibility is broader than the extended type needs.
	Suggested AccessLevel `json:"suggested,omitempty"`
}

// Graph is the program-wide declaration and reference store.
type Graph struct {
	mu sync.Mutex

	decls []*Declaration
	refs  []*Reference

	byUsr      map[string]DeclID
	byKey      map[declKey]DeclID
	byKind     map[Kind]*roaring.Bitmap
	byLocation map[Location][]DeclID
	byFile     map[string]*roaring.Bitmap
	refsTo     map[string]*roaring.Bitmap
	refKeys    map[refKey]RefID

	rootRefs     *roaring.Bitmap
	danglingRefs *roaring.Bitmap
	// conformanceRefs are type-level protocol conformances detached from their owner's related set.
	conformanceRefs *roaring.Bitmap
	conformances    map[DeclID][]RefID

	files map[string]*SourceFile

	retainedPolicy *roaring.Bitmap
	retained       *roaring.Bitmap
	ignored        *roaring.Bitmap
	counts         map[DeclID]int32

	assignOnly             *roaring.Bitmap
	redundantProtocols     map[DeclID][]RefID
	redundantAccessibility map[DeclID]AccessLevel
	unusedImports          map[string][]ImportStatement
	foldedExtensions       []FoldedExtension
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		decls:                  []*Declaration{nil},
		refs:                   []*Reference{nil},
		byUsr:                  make(map[string]DeclID),
		byKey:                  make(map[declKey]DeclID),
		byKind:                 make(map[Kind]*roaring.Bitmap),
		byLocation:             make(map[Location][]DeclID),
		byFile:                 make(map[string]*roaring.Bitmap),
		refsTo:                 make(map[string]*roaring.Bitmap),
		refKeys:                make(map[refKey]RefID),
		rootRefs:               roaring.New(),
		danglingRefs:           roaring.New(),
		conformanceRefs:        roaring.New(),
		conformances:           make(map[DeclID][]RefID),
		files:                  make(map[string]*SourceFile),
		retainedPolicy:         roaring.New(),
		retained:               roaring.New(),
		ignored:                roaring.New(),
		counts:                 make(map[DeclID]int32),
		assignOnly:             roaring.New(),
		redundantProtocols:     make(map[DeclID][]RefID),
		redundantAccessibility: make(map[DeclID]AccessLevel),
		unusedImports:          make(map[string][]ImportStatement),
	}
}

// WithLock runs fn while holding the graph lock. fn must use WithoutLock methods only.
func (g *Graph) WithLock(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn()
}

// --- files ---

// AddFile registers a source file, merging modules and imports into an existing entry.
func (g *Graph) AddFile(f *SourceFile) *SourceFile {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.AddFileWithoutLock(f)
}

// AddFileWithoutLock is AddFile for callers holding the lock.
func (g *Graph) AddFileWithoutLock(f *SourceFile) *SourceFile {
	existing, ok := g.files[f.Path]
	if !ok {
		file := &SourceFile{Path: f.Path, IgnoreAll: f.IgnoreAll, TopLevelCode: f.TopLevelCode}
		file.AddModules(f.Modules...)
		file.AddImports(f.Imports...)
		g.files[f.Path] = file
		return file
	}
	existing.AddModules(f.Modules...)
	existing.AddImports(f.Imports...)
	existing.IgnoreAll = existing.IgnoreAll || f.IgnoreAll
	existing.TopLevelCode = existing.TopLevelCode || f.TopLevelCode
	return existing
}

// File returns the registered file for path.
func (g *Graph) File(path string) *SourceFile {
	return g.files[path]
}

// Files returns all files sorted by path.
func (g *Graph) Files() []*SourceFile {
	files := make([]*SourceFile, 0, len(g.files))
	for _, f := range g.files {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}

// ModulesOf returns the modules the declaration's file is compiled into.
func (g *Graph) ModulesOf(d *Declaration) []string {
	if f := g.files[d.Location.File]; f != nil {
		return f.Modules
	}
	return nil
}

// IndexedModules returns every module that owns at least one ingested file.
func (g *Graph) IndexedModules() map[string]bool {
	modules := make(map[string]bool)
	for _, f := range g.files {
		for _, m := range f.Modules {
			modules[m] = true
		}
	}
	return modules
}

// --- declarations ---

// AddDeclaration inserts d or merges it into the declaration already known by
// one of its USRs or by its kind, name, implicit flag and location. The
// canonical declaration is returned.
func (g *Graph) AddDeclaration(d *Declaration) (*Declaration, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.AddDeclarationWithoutLock(d)
}

// AddDeclarationWithoutLock is AddDeclaration for callers holding the lock.
func (g *Graph) AddDeclarationWithoutLock(d *Declaration) (*Declaration, error) {
	if len(d.Usrs) == 0 {
		return nil, fmt.Errorf("%w: %s %q at %s", ErrEmptyUsrs, d.Kind, d.Name, d.Location)
	}
	key := declKey{kind: d.Kind, name: d.Name, implicit: d.Implicit, loc: d.Location}
	existingID := DeclID(0)
	for _, usr := range d.Usrs {
		if id, ok := g.byUsr[usr]; ok {
			existingID = id
			break
		}
	}
	if existingID == 0 && !d.Location.IsZero() {
		existingID = g.byKey[key]
	}
	if existingID != 0 {
		existing := g.decls[existingID]
		existing.AddUsrs(d.Usrs...)
		existing.ObjcAccessible = existing.ObjcAccessible || d.ObjcAccessible
		for _, usr := range d.Usrs {
			g.byUsr[usr] = existingID
		}
		return existing, nil
	}

	d.ID = DeclID(len(g.decls))
	g.decls = append(g.decls, d)
	if d.Accessibility.Level == AccessUnknown {
		d.Accessibility = DefaultAccessibility()
	}
	for _, usr := range d.Usrs {
		g.byUsr[usr] = d.ID
	}
	if !d.Location.IsZero() {
		g.byKey[key] = d.ID
		g.byLocation[d.Location] = append(g.byLocation[d.Location], d.ID)
		g.fileSet(d.Location.File).Add(uint32(d.ID))
	}
	g.kindSet(d.Kind).Add(uint32(d.ID))
	return d, nil
}

func (g *Graph) fileSet(path string) *roaring.Bitmap {
	set, ok := g.byFile[path]
	if !ok {
		set = roaring.New()
		g.byFile[path] = set
	}
	return set
}

func (g *Graph) kindSet(k Kind) *roaring.Bitmap {
	set, ok := g.byKind[k]
	if !ok {
		set = roaring.New()
		g.byKind[k] = set
	}
	return set
}

// RemoveDeclaration removes d from every index and detaches it from its parent.
// Children are not removed; callers re-parent or prune them. References owned by
// d are removed with it.
func (g *Graph) RemoveDeclaration(id DeclID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.RemoveDeclarationWithoutLock(id)
}

// RemoveDeclarationWithoutLock is RemoveDeclaration for callers holding the lock.
func (g *Graph) RemoveDeclarationWithoutLock(id DeclID) {
	d := g.Declaration(id)
	if d == nil {
		return
	}
	for _, usr := range d.Usrs {
		if g.byUsr[usr] == id {
			delete(g.byUsr, usr)
		}
	}
	key := declKey{kind: d.Kind, name: d.Name, implicit: d.Implicit, loc: d.Location}
	if g.byKey[key] == id {
		delete(g.byKey, key)
	}
	if ids := removeID(g.byLocation[d.Location], id); len(ids) == 0 {
		delete(g.byLocation, d.Location)
	} else {
		g.byLocation[d.Location] = ids
	}
	if set, ok := g.byFile[d.Location.File]; ok {
		set.Remove(uint32(id))
		if set.IsEmpty() {
			delete(g.byFile, d.Location.File)
		}
	}
	g.kindSet(d.Kind).Remove(uint32(id))
	if parent := g.Declaration(d.Parent); parent != nil {
		parent.Children = removeID(parent.Children, id)
	}
	for _, refID := range slices.Clone(d.References) {
		g.RemoveReferenceWithoutLock(refID)
	}
	for _, refID := range slices.Clone(d.Related) {
		g.RemoveReferenceWithoutLock(refID)
	}
	for _, refID := range slices.Clone(g.conformances[id]) {
		g.RemoveReferenceWithoutLock(refID)
	}
	g.retainedPolicy.Remove(uint32(id))
	g.retained.Remove(uint32(id))
	g.ignored.Remove(uint32(id))
	g.assignOnly.Remove(uint32(id))
	delete(g.counts, id)
	g.decls[id] = nil
}

// SetParent makes parent the structural parent of child, detaching it from any previous parent.
func (g *Graph) SetParent(child, parent DeclID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.SetParentWithoutLock(child, parent)
}

// SetParentWithoutLock is SetParent for callers holding the lock.
func (g *Graph) SetParentWithoutLock(child, parent DeclID) {
	c := g.Declaration(child)
	if c == nil || child == parent {
		return
	}
	if old := g.Declaration(c.Parent); old != nil {
		old.Children = removeID(old.Children, child)
	}
	c.Parent = 0
	if p := g.Declaration(parent); p != nil {
		c.Parent = parent
		p.Children = addID(p.Children, child)
	}
}

// Declaration returns the declaration with id, or nil.
func (g *Graph) Declaration(id DeclID) *Declaration {
	if id == 0 || int(id) >= len(g.decls) {
		return nil
	}
	return g.decls[id]
}

// DeclarationForUsr returns the declaration identified by usr, implicit or not.
func (g *Graph) DeclarationForUsr(usr string) *Declaration {
	if id, ok := g.byUsr[usr]; ok {
		return g.decls[id]
	}
	return nil
}

// ExplicitDeclaration returns the non-implicit declaration identified by usr.
// Implicit declarations are never resolution targets.
func (g *Graph) ExplicitDeclaration(usr string) *Declaration {
	d := g.DeclarationForUsr(usr)
	if d == nil || d.Implicit {
		return nil
	}
	return d
}

// Declarations returns the declarations of the given kinds ordered by ID.
// With no kinds every declaration is returned.
func (g *Graph) Declarations(kinds ...Kind) []*Declaration {
	if len(kinds) == 0 {
		out := make([]*Declaration, 0, len(g.decls))
		for _, d := range g.decls {
			if d != nil {
				out = append(out, d)
			}
		}
		return out
	}
	set := roaring.New()
	for _, k := range kinds {
		if ks, ok := g.byKind[k]; ok {
			set.Or(ks)
		}
	}
	out := make([]*Declaration, 0, set.GetCardinality())
	it := set.Iterator()
	for it.HasNext() {
		if d := g.decls[it.Next()]; d != nil {
			out = append(out, d)
		}
	}
	return out
}

// DeclarationsAt returns the declarations located exactly at loc.
func (g *Graph) DeclarationsAt(loc Location) []*Declaration {
	ids := g.byLocation[loc]
	out := make([]*Declaration, 0, len(ids))
	for _, id := range ids {
		if d := g.Declaration(id); d != nil {
			out = append(out, d)
		}
	}
	return out
}

// DeclarationsInFile returns the declarations located in path, ordered by location.
func (g *Graph) DeclarationsInFile(path string) []*Declaration {
	set, ok := g.byFile[path]
	if !ok {
		return nil
	}
	out := g.declsFromSet(set)
	sort.Slice(out, func(i, j int) bool { return out[i].Location.Less(out[j].Location) })
	return out
}

// Len returns the number of live declarations.
func (g *Graph) Len() int {
	n := 0
	for _, d := range g.decls {
		if d != nil {
			n++
		}
	}
	return n
}

// Parent returns the structural parent of d.
func (g *Graph) Parent(d *Declaration) *Declaration {
	return g.Declaration(d.Parent)
}

// Children returns the direct children of d.
func (g *Graph) Children(d *Declaration) []*Declaration {
	out := make([]*Declaration, 0, len(d.Children))
	for _, id := range d.Children {
		if c := g.Declaration(id); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Ancestors returns the parent chain of d, nearest first.
func (g *Graph) Ancestors(d *Declaration) []*Declaration {
	var out []*Declaration
	seen := map[DeclID]bool{d.ID: true}
	for p := g.Parent(d); p != nil && !seen[p.ID]; p = g.Parent(p) {
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}

// IsAncestor reports whether anc is a (transitive) parent of d.
func (g *Graph) IsAncestor(anc, d *Declaration) bool {
	for _, a := range g.Ancestors(d) {
		if a.ID == anc.ID {
			return true
		}
	}
	return false
}

// Descendants returns every transitive child of d in breadth-first order.
func (g *Graph) Descendants(d *Declaration) []*Declaration {
	var out []*Declaration
	seen := map[DeclID]bool{d.ID: true}
	queue := slices.Clone(d.Children)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		c := g.Declaration(id)
		if c == nil {
			continue
		}
		out = append(out, c)
		queue = append(queue, c.Children...)
	}
	return out
}

// --- references ---

func (g *Graph) keyFor(r *Reference, root bool) refKey {
	return refKey{owner: r.Owner, parentRef: r.ParentRef, usr: r.Usr, loc: r.Location, related: r.Related, root: root}
}

func (g *Graph) insertReference(r *Reference, root bool) (*Reference, bool) {
	key := g.keyFor(r, root)
	if !r.Synthesized && !r.Location.IsZero() {
		if id, ok := g.refKeys[key]; ok {
			if existing := g.Reference(id); existing != nil {
				if existing.Role == RoleUnknown {
					existing.Role = r.Role
				}
				return existing, false
			}
		}
	}
	r.ID = RefID(len(g.refs))
	g.refs = append(g.refs, r)
	if !r.Synthesized && !r.Location.IsZero() {
		g.refKeys[key] = r.ID
	}
	set, ok := g.refsTo[r.Usr]
	if !ok {
		set = roaring.New()
		g.refsTo[r.Usr] = set
	}
	set.Add(uint32(r.ID))
	return r, true
}

// AddReference attaches r to owner, in Related when r.Related is set.
func (g *Graph) AddReference(r *Reference, owner DeclID) (*Reference, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.AddReferenceWithoutLock(r, owner)
}

// AddReferenceWithoutLock is AddReference for callers holding the lock.
func (g *Graph) AddReferenceWithoutLock(r *Reference, owner DeclID) (*Reference, error) {
	d := g.Declaration(owner)
	if d == nil {
		return nil, fmt.Errorf("%w: reference owner %d for %s", ErrDeclarationNotFound, owner, r.Usr)
	}
	r.Owner = owner
	r.ParentRef = 0
	ref, added := g.insertReference(r, false)
	if added {
		g.attach(ref, d)
	}
	return ref, nil
}

func (g *Graph) attach(r *Reference, d *Declaration) {
	if r.Related {
		d.Related = addID(d.Related, r.ID)
	} else {
		d.References = addID(d.References, r.ID)
	}
}

func (g *Graph) detach(r *Reference) {
	if d := g.Declaration(r.Owner); d != nil {
		d.References = removeID(d.References, r.ID)
		d.Related = removeID(d.Related, r.ID)
	}
	if g.conformanceRefs.Contains(uint32(r.ID)) {
		g.conformanceRefs.Remove(uint32(r.ID))
		if ids := removeID(g.conformances[r.Owner], r.ID); len(ids) == 0 {
			delete(g.conformances, r.Owner)
		} else {
			g.conformances[r.Owner] = ids
		}
	}
}

// AddRootReference records a module-scope reference from executable top-level code.
func (g *Graph) AddRootReference(r *Reference) *Reference {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.AddRootReferenceWithoutLock(r)
}

// AddRootReferenceWithoutLock is AddRootReference for callers holding the lock.
func (g *Graph) AddRootReferenceWithoutLock(r *Reference) *Reference {
	r.Owner, r.ParentRef = 0, 0
	ref, _ := g.insertReference(r, true)
	g.danglingRefs.Remove(uint32(ref.ID))
	g.rootRefs.Add(uint32(ref.ID))
	return ref
}

// AddDanglingReference records a reference with no resolvable owner.
// Dangling references never contribute reachability.
func (g *Graph) AddDanglingReference(r *Reference) *Reference {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.AddDanglingReferenceWithoutLock(r)
}

// AddDanglingReferenceWithoutLock is AddDanglingReference for callers holding the lock.
func (g *Graph) AddDanglingReferenceWithoutLock(r *Reference) *Reference {
	r.Owner, r.ParentRef = 0, 0
	ref, added := g.insertReference(r, false)
	if added {
		g.danglingRefs.Add(uint32(ref.ID))
	}
	return ref
}

// AddNestedReference attaches r beneath another reference. Its effective owner
// is the owner of the outermost reference.
func (g *Graph) AddNestedReference(r *Reference, parent RefID) (*Reference, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.AddNestedReferenceWithoutLock(r, parent)
}

// AddNestedReferenceWithoutLock is AddNestedReference for callers holding the lock.
func (g *Graph) AddNestedReferenceWithoutLock(r *Reference, parent RefID) (*Reference, error) {
	p := g.Reference(parent)
	if p == nil {
		return nil, fmt.Errorf("%w: parent reference %d", ErrReferenceNotFound, parent)
	}
	r.Owner = 0
	r.ParentRef = parent
	ref, _ := g.insertReference(r, false)
	return ref, nil
}

// MoveReference re-homes a reference onto a new owner, keeping its ID.
func (g *Graph) MoveReference(id RefID, owner DeclID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.MoveReferenceWithoutLock(id, owner)
}

// MoveReferenceWithoutLock is MoveReference for callers holding the lock.
func (g *Graph) MoveReferenceWithoutLock(id RefID, owner DeclID) error {
	r := g.Reference(id)
	if r == nil {
		return fmt.Errorf("%w: %d", ErrReferenceNotFound, id)
	}
	d := g.Declaration(owner)
	if d == nil {
		return fmt.Errorf("%w: %d", ErrDeclarationNotFound, owner)
	}
	g.detach(r)
	r.Owner = owner
	g.attach(r, d)
	return nil
}

// DetachConformance moves a type-level protocol conformance out of its owner's
// related set. The reference stays in the graph and keeps its owner, but the
// marker no longer follows it: conforming to a protocol does not use it.
func (g *Graph) DetachConformance(id RefID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.DetachConformanceWithoutLock(id)
}

// DetachConformanceWithoutLock is DetachConformance for callers holding the lock.
func (g *Graph) DetachConformanceWithoutLock(id RefID) error {
	r := g.Reference(id)
	if r == nil {
		return fmt.Errorf("%w: %d", ErrReferenceNotFound, id)
	}
	if r.Owner == 0 || g.conformanceRefs.Contains(uint32(id)) {
		return nil
	}
	g.detach(r)
	g.conformanceRefs.Add(uint32(id))
	g.conformances[r.Owner] = addID(g.conformances[r.Owner], id)
	return nil
}

// IsConformance reports whether r is a detached type-level conformance.
func (g *Graph) IsConformance(r *Reference) bool {
	return g.conformanceRefs.Contains(uint32(r.ID))
}

// ConformancesOf returns the detached conformances declared by d.
func (g *Graph) ConformancesOf(d *Declaration) []*Reference {
	return g.resolveRefs(g.conformances[d.ID])
}

// ConformancesTo returns the detached conformances naming protocol p.
func (g *Graph) ConformancesTo(p *Declaration) []*Reference {
	var out []*Reference
	for _, r := range g.ReferencesToDeclaration(p) {
		if g.IsConformance(r) {
			out = append(out, r)
		}
	}
	return out
}

// RemoveReference deletes a reference from the arena and every index.
func (g *Graph) RemoveReference(id RefID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.RemoveReferenceWithoutLock(id)
}

// RemoveReferenceWithoutLock is RemoveReference for callers holding the lock.
func (g *Graph) RemoveReferenceWithoutLock(id RefID) {
	r := g.Reference(id)
	if r == nil {
		return
	}
	g.detach(r)
	if set, ok := g.refsTo[r.Usr]; ok {
		set.Remove(uint32(id))
		if set.IsEmpty() {
			delete(g.refsTo, r.Usr)
		}
	}
	for key, kid := range g.refKeysFor(r) {
		if kid == id {
			delete(g.refKeys, key)
		}
	}
	g.rootRefs.Remove(uint32(id))
	g.danglingRefs.Remove(uint32(id))
	g.refs[id] = nil
}

func (g *Graph) refKeysFor(r *Reference) map[refKey]RefID {
	out := make(map[refKey]RefID, 2)
	for _, root := range []bool{false, true} {
		key := g.keyFor(r, root)
		if id, ok := g.refKeys[key]; ok {
			out[key] = id
		}
	}
	return out
}

// Reference returns the reference with id, or nil.
func (g *Graph) Reference(id RefID) *Reference {
	if id == 0 || int(id) >= len(g.refs) {
		return nil
	}
	return g.refs[id]
}

// ReferencesTo returns every reference whose target is usr, ordered by ID.
func (g *Graph) ReferencesTo(usr string) []*Reference {
	set, ok := g.refsTo[usr]
	if !ok {
		return nil
	}
	out := make([]*Reference, 0, set.GetCardinality())
	it := set.Iterator()
	for it.HasNext() {
		if r := g.refs[it.Next()]; r != nil {
			out = append(out, r)
		}
	}
	return out
}

// ReferencesToDeclaration returns every reference targeting any USR of d.
func (g *Graph) ReferencesToDeclaration(d *Declaration) []*Reference {
	if len(d.Usrs) == 1 {
		return g.ReferencesTo(d.Usrs[0])
	}
	set := roaring.New()
	for _, usr := range d.Usrs {
		if s, ok := g.refsTo[usr]; ok {
			set.Or(s)
		}
	}
	out := make([]*Reference, 0, set.GetCardinality())
	it := set.Iterator()
	for it.HasNext() {
		if r := g.refs[it.Next()]; r != nil {
			out = append(out, r)
		}
	}
	return out
}

// ReferencesOf returns the non-related references owned by d.
func (g *Graph) ReferencesOf(d *Declaration) []*Reference {
	return g.resolveRefs(d.References)
}

// RelatedOf returns the related references owned by d.
func (g *Graph) RelatedOf(d *Declaration) []*Reference {
	return g.resolveRefs(d.Related)
}

func (g *Graph) resolveRefs(ids []RefID) []*Reference {
	out := make([]*Reference, 0, len(ids))
	for _, id := range ids {
		if r := g.Reference(id); r != nil {
			out = append(out, r)
		}
	}
	return out
}

// AllReferences returns every live reference ordered by ID.
func (g *Graph) AllReferences() []*Reference {
	out := make([]*Reference, 0, len(g.refs))
	for _, r := range g.refs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// RootReferences returns the module-scope references.
func (g *Graph) RootReferences() []*Reference {
	return g.refsFromSet(g.rootRefs)
}

// DanglingReferences returns references no strategy could associate.
func (g *Graph) DanglingReferences() []*Reference {
	return g.refsFromSet(g.danglingRefs)
}

// IsRootReference reports whether r is a module-scope reference.
func (g *Graph) IsRootReference(r *Reference) bool {
	return g.rootRefs.Contains(uint32(r.ID))
}

func (g *Graph) refsFromSet(set *roaring.Bitmap) []*Reference {
	out := make([]*Reference, 0, set.GetCardinality())
	it := set.Iterator()
	for it.HasNext() {
		if r := g.refs[it.Next()]; r != nil {
			out = append(out, r)
		}
	}
	return out
}

// OwnerOf returns the declaration that effectively owns r, following nested
// references to the outermost one. Root and dangling references have no owner.
func (g *Graph) OwnerOf(r *Reference) *Declaration {
	seen := map[RefID]bool{}
	for r != nil && !seen[r.ID] {
		seen[r.ID] = true
		if r.Owner != 0 {
			return g.Declaration(r.Owner)
		}
		r = g.Reference(r.ParentRef)
	}
	return nil
}

// --- retention and marking state ---

// Retain adds d to the retained set permanently, by policy.
func (g *Graph) Retain(d *Declaration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.RetainWithoutLock(d)
}

// RetainWithoutLock is Retain for callers holding the lock.
func (g *Graph) RetainWithoutLock(d *Declaration) {
	g.retainedPolicy.Add(uint32(d.ID))
	g.retained.Add(uint32(d.ID))
}

// IsRetainedByPolicy reports whether a retention rule retained d.
func (g *Graph) IsRetainedByPolicy(d *Declaration) bool {
	return g.retainedPolicy.Contains(uint32(d.ID))
}

// IsRetained reports whether d is currently retained. The marker may unwind
// retention of declarations pruned beneath a dead ancestor.
func (g *Graph) IsRetained(d *Declaration) bool {
	return g.retained.Contains(uint32(d.ID))
}

// RetainedDeclarations returns the currently retained declarations.
func (g *Graph) RetainedDeclarations() []*Declaration {
	return g.declsFromSet(g.retained)
}

// Unretain drops the effective retained status of d without touching the policy set.
func (g *Graph) Unretain(d *Declaration) {
	g.retained.Remove(uint32(d.ID))
}

// ResetMarks clears all reachability state and restores retention from policy.
func (g *Graph) ResetMarks() {
	g.retained = g.retainedPolicy.Clone()
	g.ignored.Clear()
	g.counts = make(map[DeclID]int32)
}

// Count returns the incoming mark count of d.
func (g *Graph) Count(d *Declaration) int32 {
	return g.counts[d.ID]
}

// AddCount adjusts the mark count of d and returns the new value. Counts never go negative.
func (g *Graph) AddCount(d *Declaration, delta int32) int32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.AddCountWithoutLock(d, delta)
}

// AddCountWithoutLock is AddCount for callers holding the lock.
func (g *Graph) AddCountWithoutLock(d *Declaration, delta int32) int32 {
	n := g.counts[d.ID] + delta
	if n <= 0 {
		delete(g.counts, d.ID)
		return 0
	}
	g.counts[d.ID] = n
	return n
}

// ClearCount zeroes the mark count of d.
func (g *Graph) ClearCount(d *Declaration) {
	delete(g.counts, d.ID)
}

// IsReachable reports whether d is retained or has a positive mark count.
func (g *Graph) IsReachable(d *Declaration) bool {
	return g.counts[d.ID] > 0 || g.retained.Contains(uint32(d.ID))
}

// Ignore places d in the pruned-descendant set.
func (g *Graph) Ignore(d *Declaration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.IgnoreWithoutLock(d)
}

// IgnoreWithoutLock is Ignore for callers holding the lock.
func (g *Graph) IgnoreWithoutLock(d *Declaration) {
	g.ignored.Add(uint32(d.ID))
}

// IsIgnored reports whether d was pruned beneath a dead ancestor.
func (g *Graph) IsIgnored(d *Declaration) bool {
	return g.ignored.Contains(uint32(d.ID))
}

// IgnoredDeclarations returns the pruned descendants.
func (g *Graph) IgnoredDeclarations() []*Declaration {
	return g.declsFromSet(g.ignored)
}

// ReachableDeclarations returns every reachable declaration ordered by ID.
func (g *Graph) ReachableDeclarations() []*Declaration {
	var out []*Declaration
	for _, d := range g.decls {
		if d != nil && g.IsReachable(d) {
			out = append(out, d)
		}
	}
	return out
}

// UnreachableDeclarations returns declarations neither reachable nor ignored.
func (g *Graph) UnreachableDeclarations() []*Declaration {
	var out []*Declaration
	for _, d := range g.decls {
		if d != nil && !g.IsReachable(d) && !g.IsIgnored(d) {
			out = append(out, d)
		}
	}
	return out
}

func (g *Graph) declsFromSet(set *roaring.Bitmap) []*Declaration {
	out := make([]*Declaration, 0, set.GetCardinality())
	it := set.Iterator()
	for it.HasNext() {
		if d := g.decls[it.Next()]; d != nil {
			out = append(out, d)
		}
	}
	return out
}

// --- analysis outcomes ---

// MarkAssignOnly records d as a property that is written but never read.
func (g *Graph) MarkAssignOnly(d *Declaration) {
	g.assignOnly.Add(uint32(d.ID))
}

// IsAssignOnly reports whether d was found written but never read.
func (g *Graph) IsAssignOnly(d *Declaration) bool {
	return g.assignOnly.Contains(uint32(d.ID))
}

// MarkRedundantProtocol records an unreachable protocol with reachable conformances.
func (g *Graph) MarkRedundantProtocol(d *Declaration, conformances []RefID) {
	g.redundantProtocols[d.ID] = conformances
}

// RedundantProtocols returns protocols found redundant and their conformance references.
func (g *Graph) RedundantProtocols() map[DeclID][]RefID {
	return g.redundantProtocols
}

// MarkRedundantAccessibility records that d could use the narrower level.
func (g *Graph) MarkRedundantAccessibility(d *Declaration, suggested AccessLevel) {
	g.redundantAccessibility[d.ID] = suggested
}

// RedundantAccessibility returns declarations with broader accessibility than required.
func (g *Graph) RedundantAccessibility() map[DeclID]AccessLevel {
	return g.redundantAccessibility
}

// MarkUnusedImport records an import whose module is never referenced from file.
func (g *Graph) MarkUnusedImport(file string, imp ImportStatement) {
	g.unusedImports[file] = append(g.unusedImports[file], imp)
}

// UnusedImports returns unused imports keyed by file path.
func (g *Graph) UnusedImports() map[string][]ImportStatement {
	return g.unusedImports
}

// AddFoldedExtension remembers an extension removed by folding.
func (g *Graph) AddFoldedExtension(ext FoldedExtension) {
	g.foldedExtensions = append(g.foldedExtensions, ext)
}

// MarkRedundantFoldedExtension records a narrower level for the folded extension at index i.
func (g *Graph) MarkRedundantFoldedExtension(i int, suggested AccessLevel) {
	if i >= 0 && i < len(g.foldedExtensions) {
		g.foldedExtensions[i].Suggested = suggested
	}
}

// FoldedExtensions returns the extensions removed by folding.
func (g *Graph) FoldedExtensions() []FoldedExtension {
	return g.foldedExtensions
}
