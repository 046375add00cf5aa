/*
	Package dvid provides types, constants, and functions that have no other dependencies
	within trainlabels and can be used by all of its packages.  This includes logging,
	serialization of volume payloads, versioning, and command-line argument handling.
	Since these elements are used at multiple layers, we separate them here.
*/
package dvid
