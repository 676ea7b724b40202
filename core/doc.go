// Package core provides the foundational domain types, interfaces and
// contracts used by GroupMesh. It defines the core abstractions for:
//
//   - Participants (entities seeking placement into a session)
//   - Sessions (capacity-bounded groupings with a forming/ready/running/ended lifecycle)
//   - Batches (bounded-lifetime containers grouping sessions under shared configuration)
//   - Events (immutable lifecycle notifications for downstream consumers)
//   - Decisions & Strategies (pluggable matching policies)
//   - Pluggable stores for attribute state, outbound events, batch
//     configuration payloads and assignment records
//
// The package intentionally keeps implementation concerns (assignment
// coordination, lifecycle management, concrete store backends) out of scope,
// exposing small interfaces to enable custom backends and extensions.
package core
