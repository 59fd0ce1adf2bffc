// Package entity contains the core domain types of the console.
//
// It defines Entity (an untyped record with a server-assigned id), the closed
// set of entity classes with their endpoint families, field descriptors with
// visibility tags, and relationship records between two classes.
package entity
