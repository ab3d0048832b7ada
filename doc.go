// Package ecss implements the storage core of an entity-component
// storage system: a chunked, sector-oriented container for heterogeneous
// component data, indexed by entity id for O(1) lookup and iterated in a
// cache-friendly, structure-of-arrays layout.
//
// # Overview
//
// A SectorsArray holds, for one registered set of grouped component
// types, a dense arena of "sectors" (one per live entity) addressed
// through a sparse array keyed by entity id. Component reads and writes
// go through Get/Insert/Erase; bulk traversal goes through the iterator
// family or an ArraysView joining several containers.
//
// # Basic usage
//
//	layout := ecss.NewSectorLayout(posMeta, velMeta)
//	sa := ecss.NewSectorsArray(layout, ecss.WithInitialCapacity(1024))
//	defer sa.Close()
//
//	sa.Insert(entityID, ecss.ValueOf(posMeta.TypeID, &pos), ecss.ValueOf(velMeta.TypeID, &vel))
//	ptr, ok := sa.Get(entityID, posMeta.TypeID)
//
// # Thread safety
//
// SectorsArray created with WithThreadSafe(true) coordinates structural
// mutation against in-flight readers through a pin subsystem: readers
// pin a sector id before dereferencing its payload and unpin when done;
// mutators wait for affected pins to drain before reclaiming memory.
// See PinCounters, PinnedSector, and PinnedComponent.
//
// # Memory layout
//
// Sector payloads live in a ChunksAllocator: a growable list of
// fixed-capacity chunks, each large enough for a configured number of
// sectors (WithChunkCapacity; DefaultChunkCapacity when unset).
// Chunks are never relocated once allocated, so a payload pointer
// obtained from a pinned sector remains valid for as long as the pin is
// held, and in fact for the life of the arena unless the slot itself is
// erased.
//
// # Non-goals
//
// No serialization, no persistence, no system scheduling, no archetype
// migration, and no entity-id or type-id allocation — those are the
// responsibility of an external façade that consumes this package.
package ecss
