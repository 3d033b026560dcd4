// Package core defines the value types shared across CargoMesh: domain
// identifiers, routing decisions, agent results, the typed streaming event
// envelope and the process-wide oracle call gate. The package has no
// dependencies on other CargoMesh packages so every layer can import it.
package core
