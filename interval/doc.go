/*Package interval implements interval clustering for sets of genomic
  coordinates.
  A ClusterTree merges every interval inserted into it with the intervals it
  overlaps, or lies within MaxGap bases of, and remembers the labels of the
  merged members. The result does not depend on insertion order.
  Coordinates are 0-based and half open.
*/
package interval
