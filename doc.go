/*
Trainlabels turns raw label volumes into training targets and loss-weighting
masks for connectomics segmentation models.

Documentation can be found nicely formatted at http://godoc.org/github.com/janelia-flyem/trainlabels

Samples

A sample is a keyed set of float volumes laid out as (channel, z, y, x).  Every
volume K may have a companion mask K_mask with the same number of voxels; a
missing mask means every voxel counts.

Transforms

A transform reads one sample entry with its mask and writes a target entry and
target mask.  The compiled transform types are:

	affinity         pairwise same-object labels for a list of offsets, optionally cropped
	boundary         binary foreground/boundary label
	segmentation     connected-component relabeling of a segmentation
	synapse          binary synapse label with base weight
	semantic         one channel per listed class id
	object_instance  binary mask of one object (the center object by default)
	center_instance  center object mask plus a center-voxel mask

Transforms are chained into a pipeline from [[transform]] sections of a TOML
configuration.  Binary labels may be rebalanced so that foreground and
background voxels carry equal total weight.

Commands

In the following documentation, the type of brackets designate
<required parameter> and [optional parameter].

	trainlabels about
	trainlabels check <config.toml>
	trainlabels generate <config.toml> [n=<count>] [object_id=<id>] [out=<manifest.json>]
	trainlabels serve <config.toml>
	trainlabels show <config.toml> <sample id>
	trainlabels token <config.toml> <user>

Generated samples go to the configured store: an embedded BadgerDB ("badger") or
a cloud bucket ("bucket", with gs://, file:// or mem:// references).  With
[kafka] servers configured, every stored or deleted sample is announced on the
Kafka topic.  See package server for the HTTP API.
*/
package trainlabels
