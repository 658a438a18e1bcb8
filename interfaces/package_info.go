// Package interfaces contains the types shared between the store and its pluggable components:
// the fixed key schema, durability classes, the album container, bus messages and backend status.
//
// You will not need most of these types unless you are writing a custom backend or broadcast bus.
package interfaces
