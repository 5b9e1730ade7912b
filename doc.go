// Package sqlmap is a lightweight SQL execution and row mapping layer over database/sql. Write a template with positional markers or #{name} placeholders, bind values from an argument list or from a data object's fields, and turn each result row into your own type with a small mapping function. Values are always sent through the driver's parameterization, never spliced into the SQL text.
package sqlmap
