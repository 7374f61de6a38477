// Package mot reads and writes the MOTChallenge text format.
//
// Detection files hold one box per line:
//
//	frame,id,left,top,width,height,conf,x,y,z[,class]
//
// Frames are 1-based and the id column is ignored on input. Tracker
// output uses the same layout with the track ID (1-based) in the id
// column and -1 in the world-coordinate columns.
package mot
