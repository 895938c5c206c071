// Package btree stores a table as a clustered B+Tree in one file.
//
// Rows live in leaf pages in key order; internal pages hold separator keys
// and child page numbers. Every page access goes through a
// [clustore/pkg/memory.BufferPool], so changes become durable when the
// owning transaction commits and are rolled back to the before images when
// it aborts.
//
// # File layout
//
// The file starts with a 9-byte root pointer region naming the root page,
// its category and the first header page. Numbered pages follow, all of the
// configured page size:
//
//   - Leaf: slot bitmap, parent, left and right sibling, then fixed-size rows.
//   - Internal: slot bitmap, parent, child category, keys, child pointers.
//   - Header: free-page bitmap (1 = in use) and the next and previous header.
//
// Page numbers are not self-describing on disk. The root pointer records the
// root's category and each internal page records its children's, so pages
// are only ever decoded on the way down from the root.
//
// # Structure changes
//
// A full leaf splits into a new right sibling and the new leaf's first key is
// copied into the parent. A full internal page splits around its middle key,
// which moves up. Splits climb until a parent has room or a new root is made.
//
// A delete that leaves a page under half full first tries to take entries
// from a sibling, left sibling first, and merges with it otherwise. Merges
// climb the same way, and an internal root left without keys is replaced by
// its only child. Freed pages are recorded in the header pages and reused by
// later allocations before the file grows.
package btree
