/*
Package domain contains the core domain models for the Espalier engine.

It defines the fundamental entities of the versioned configuration store:
Components, Sections, visibility rules, and the immutable State snapshot.
This package is kept pure and free of external dependencies like I/O or
persistence, following Hexagonal Architecture principles.

# Key Entities

  - ComponentConfig: One placed UI element (type, parameters, visibility).
  - Section: An ordered group of components; order is render order.
  - VisibilityRule: A closed set of tagged variants evaluated against a
    caller-supplied ViewerContext. Data, never executable code.
  - State: An immutable, sequence-numbered snapshot of an entity's
    configuration within one partition (e.g. "draft", "published").
*/
package domain
