// Package models defines the core domain models for splitledger.
//
// # Persisted Models
//
//   - Expense: one ledger entry owned by a group, amount in whole USD
//   - ParticipantRecord: one member's role and fractional share of an expense
//
// # Read-only Models
//
//   - RosterMember: a group member as stored by the membership layer. This
//     package never writes members; it only reads them to resolve names.
//
// # Design Principles
//
// 1. **Exact shares**: splits are numerator/denominator pairs, never floats
// 2. **IDs over pointers**: relationships are ID strings (UUID format)
// 3. **Unix timestamps**: all times are stored as int64 seconds
package models
