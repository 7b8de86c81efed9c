// Package database provides the PostgreSQL connection pool used by the
// entity directory.
//
// The tournament platform owns the schema; livecast only reads
// tournaments, matches, and their participant/organizer sets to admit
// connections and assign roles.
package database
