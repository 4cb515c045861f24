/*
go-vitpose runs top down human pose estimation against models hosted on a
KServe v2 compatible model server such as OpenVINO Model Server or Triton.

An object detector finds each person in an image, every detection box is
cropped and normalized into a batch for a ViTPose style keypoint model, and the
predicted keypoints are mapped back onto the source image where they can be
exported as JSON or drawn as a skeleton.

See the vitpose command under cmd/ for usage.
*/
package vitpose
