// Package singreg provides a registry of shared, named singleton instances.
// It is the piece of a dependency-injection container that holds the instances
// themselves: each name gets at most one instance and at most one concurrent
// creator, circular construction dependencies are resolved by exposing
// partially-constructed instances through a staged cache, and declared
// dependency and containment relationships guarantee that a name's dependents
// are always destroyed before the name itself.
//
// The Registry object has comprehensive documentation about how it works.
package singreg
